package view

import (
	"errors"

	"github.com/kdimtricp/paintestimator/internal/transport"
	"github.com/kdimtricp/paintestimator/internal/validation"
)

// Notice classes.
const (
	ClassValidation = "validation"
	ClassNetwork    = "network"
	ClassHTTP       = "http"
	ClassBusy       = "busy"
	ClassError      = "error"
)

// Notice is the dismissible message shown after a failed action. It carries
// the error class and a short human message, never the underlying detail.
type Notice struct {
	Class   string `json:"class"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

func NoticeFor(err error) Notice {
	var verr *validation.Error
	var nerr *transport.NetworkError
	var herr *transport.HTTPError

	switch {
	case errors.As(err, &verr):
		return Notice{Class: ClassValidation, Message: verr.Reason}
	case errors.Is(err, ErrSubmitInFlight):
		return Notice{Class: ClassBusy, Message: "An estimate is already being calculated"}
	case errors.As(err, &herr):
		return Notice{Class: ClassHTTP, Message: herr.Message, Status: herr.Status}
	case errors.As(err, &nerr):
		return Notice{Class: ClassNetwork, Message: "Could not reach the estimation service. Please check your connection and try again."}
	}
	return Notice{Class: ClassError, Message: "Something went wrong while preparing the estimate"}
}
