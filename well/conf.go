package well

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//Conf holds our configuration taken from the environment
type Conf struct {
	Deployment string `envconfig:"DEPLOYMENT"`
	Addr       string `envconfig:"ADDR" default:":8080"`

	//Store selects the storage backend: memory, postgres or dynamo
	Store string `envconfig:"STORE" default:"memory"`

	//MaxCount caps the count a single request may ask for, zero is uncapped
	MaxCount int `envconfig:"MAX_COUNT"`

	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	TokensTableName    string `envconfig:"TABLE_TOKENS_NAME"`
	AWSAccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `envconfig:"AWS_REGION"`
}

//ConfFromEnv will attempt to fill configuration from the process environment
func ConfFromEnv() (cfg *Conf, err error) {
	cfg = &Conf{}
	err = envconfig.Process("WELL", cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return cfg, nil
}

//Services hold the shared collaborators handlers operate on
type Services struct {
	Store Store
	Logs  *zap.Logger
}
