package spar

// Engine names.
const (
	EngineYAMLSuite = "yamlsuite"
	EngineGoTest    = "gotest"
)

// History store names.
const (
	HistorySQLite = "sqlite"
	HistoryNeo4j  = "neo4j"
	HistoryMemory = "memory"
)

// ConfigFile is the name of the configuration file looked up by LoadConfig.
const ConfigFile = ".spar.yaml"
