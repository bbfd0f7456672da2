package well

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

//AllocateTokensInput is input to the token allocation call
type AllocateTokensInput struct {
	Count int `json:"count"`
}

//AllocateTokensOutput is returned when tokens were drawn from the pool
type AllocateTokensOutput struct {
	Tokens []int64 `json:"tokens"`
}

//HandleAllocateTokens decodes an allocation request, draws the requested
//number of tokens from the pool and writes them back as JSON
func HandleAllocateTokens(conf *Conf, svc *Services) func(w http.ResponseWriter, r *http.Request) error {
	alloc := NewAllocator(svc.Store, svc.Logs)
	return func(w http.ResponseWriter, r *http.Request) error {
		in := &AllocateTokensInput{}
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(in); err != nil {
			return errors.Wrap(ErrInvalidCount, "failed to decode allocation input")
		}

		//reject malformed counts at the boundary, storage never sees them
		if in.Count < 1 {
			return ErrInvalidCount
		}

		if conf.MaxCount > 0 && in.Count > conf.MaxCount {
			return errors.Wrapf(ErrInvalidCount, "count %d exceeds the configured cap of %d", in.Count, conf.MaxCount)
		}

		values, err := alloc.Allocate(r.Context(), in.Count)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(w)
		return errors.Wrap(enc.Encode(&AllocateTokensOutput{Tokens: values}), "failed to encode allocation output")
	}
}
