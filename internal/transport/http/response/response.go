package response

// Msg is the body of every error and of message-only successes.
type Msg struct {
	Message string `json:"message"`
}

// Message wraps a fixed message.
func Message(msg string) Msg { return Msg{Message: msg} }

// Error builds the body for status code, preferring customMsg over the default.
func Error(code int, customMsg string) Msg {
	msg := customMsg
	if msg == "" {
		msg = CodeMsgMap[code]
	}
	return Msg{Message: msg}
}
