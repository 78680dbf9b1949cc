package config

// rawService and rawGroup are the shapes a config file decodes into before
// validation. Wire tags match the schema named in spec section 6 (`start`,
// `stopTimeout`, `stdin`, `stopStdin`), not the Go field names.
type rawService struct {
	Name               string      `yaml:"name" json:"name"`
	Aliases            []string    `yaml:"aliases" json:"aliases"`
	StartCommand       string      `yaml:"start" json:"start"`
	WorkDir            string      `yaml:"workDir" json:"workDir"`
	StdinFile          string      `yaml:"stdin" json:"stdin"`
	Stop               string      `yaml:"stop" json:"stop"`
	StopTimeoutSeconds int         `yaml:"stopTimeout" json:"stopTimeout"`
	StopStdinFile      string      `yaml:"stopStdin" json:"stopStdin"`
	StartedPatterns    []string    `yaml:"startedPatterns" json:"startedPatterns"`
	ErrorPatterns      []string    `yaml:"errorPatterns" json:"errorPatterns"`
	Color              interface{} `yaml:"color" json:"color"`
}

type rawGroup struct {
	Name         string   `yaml:"name" json:"name"`
	Aliases      []string `yaml:"aliases" json:"aliases"`
	Services     []string `yaml:"services" json:"services"`
	Dependencies []string `yaml:"dependencies" json:"dependencies"`
}

// rawConfig is the top-level document shape, per spec section 6:
// { services:[Service...], groups:[Group...], maxDepth?:int, ignoreErrors?:bool }
type rawConfig struct {
	Services     []rawService `yaml:"services" json:"services"`
	Groups       []rawGroup   `yaml:"groups" json:"groups"`
	MaxDepth     int          `yaml:"maxDepth" json:"maxDepth"`
	IgnoreErrors bool         `yaml:"ignoreErrors" json:"ignoreErrors"`
}
