// internal/wifi/messages.go
package wifi

// Message is a network manager inbox entry.
// Variants carry their payload inline; nothing is passed through shared state.
type Message interface {
	isMessage()
}

// StartHTTPServer brings up the access point and the status server.
// Posted by the manager itself at startup.
type StartHTTPServer struct{}

// ConnectingFromHTTPServer requests a station connection with Config.
type ConnectingFromHTTPServer struct {
	Config Config
}

// StaConnectedGotIP reports that the station obtained an address.
type StaConnectedGotIP struct {
	Info IPInfo
}

// StaDisconnected reports that the station link dropped or failed to come up.
type StaDisconnected struct {
	Reason string
}

// UserRequestedStaDisconnect tears the station down and forgets the credentials.
type UserRequestedStaDisconnect struct {
	Source string // "button", "http"
}

func (StartHTTPServer) isMessage()            {}
func (ConnectingFromHTTPServer) isMessage()   {}
func (StaConnectedGotIP) isMessage()          {}
func (StaDisconnected) isMessage()            {}
func (UserRequestedStaDisconnect) isMessage() {}
