package well

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

//Mux sets up the HTTP multiplexer
func Mux(conf *Conf, svc *Services) http.Handler {
	r := chi.NewRouter()

	r.Post("/AllocateTokens", errh(HandleAllocateTokens(conf, svc)))
	r.Get("/Supply", errh(HandleGetSupply(conf, svc)))

	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)
	return r
}

func errh(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			w.WriteHeader(statusFor(err))
			enc := json.NewEncoder(w)
			err = enc.Encode(struct {
				Message string `json:"message"`
			}{err.Error()})
			if err != nil {
				fmt.Fprintln(w, `{"message": "failed to encode error"}`)
			}
		}
	}
}

//statusFor maps typed allocation failures onto response codes, anything
//unrecognized is treated as a storage failure
func statusFor(err error) int {
	switch errors.Cause(err) {
	case ErrInvalidCount:
		return http.StatusBadRequest
	case ErrInsufficientSupply:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusMethodNotAllowed)
	fmt.Fprintf(w, `{"message": "method not allowed"}`)
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, `{"message": "page not found"}`)
}
