package config

const (
	PersistencePostgres = "postgres"
	PersistenceFile     = "file"
	PersistenceMemory   = "memory"
)

// PersistenceConfig selects where users, devices and audit events live
type PersistenceConfig struct {
	Type    string `env:"TRUST_PERSISTENCE" env-default:"memory"`
	DataDir string `env:"TRUST_DATA_DIR" env-default:"./data"`
}

func (p PersistenceConfig) validate() ValidationErrors {
	errs := CollectErrors(RequireOneOf("TRUST_PERSISTENCE", p.Type, PersistencePostgres, PersistenceFile, PersistenceMemory))
	if p.Type == PersistenceFile {
		errs = append(errs, CollectErrors(RequireNonEmpty("TRUST_DATA_DIR", p.DataDir))...)
	}
	return errs
}
