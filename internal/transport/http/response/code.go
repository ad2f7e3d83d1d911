package response

import "net/http"

// CodeMsgMap holds the default message for each status the API answers with.
var CodeMsgMap = map[int]string{
	http.StatusOK:                    "OK",
	http.StatusBadRequest:            "Bad Request",
	http.StatusUnauthorized:          "Unauthorized",
	http.StatusForbidden:             "You are not authorized to access this resource.",
	http.StatusNotFound:              "Not Found",
	http.StatusRequestEntityTooLarge: "Request body too large",
	http.StatusServiceUnavailable:    "Server busy",
	http.StatusGatewayTimeout:        "Request timeout",
	http.StatusInternalServerError:   "Internal Server Error",
}
