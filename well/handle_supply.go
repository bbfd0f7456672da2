package well

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

//GetSupplyOutput reports the current pool cardinality
type GetSupplyOutput struct {
	Available int64 `json:"available"`
}

//HandleGetSupply reports how many tokens are left in the pool
func HandleGetSupply(conf *Conf, svc *Services) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		n, err := svc.Store.CountAvailable(r.Context())
		if err != nil {
			return errors.Wrap(err, "failed to count available tokens")
		}

		enc := json.NewEncoder(w)
		return errors.Wrap(enc.Encode(&GetSupplyOutput{Available: n}), "failed to encode supply output")
	}
}
