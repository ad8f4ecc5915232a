package credentials

import (
	"context"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"db-sync-tool/internal/config"
)

// typo3EnvKeys maps credential fields to the documented TYPO3 dotenv
// key paths. An endpoint's keys map may override individual entries.
var typo3EnvKeys = map[string]string{
	"name":     "TYPO3_CONF_VARS__DB__Connections__Default__dbname",
	"host":     "TYPO3_CONF_VARS__DB__Connections__Default__host",
	"user":     "TYPO3_CONF_VARS__DB__Connections__Default__user",
	"password": "TYPO3_CONF_VARS__DB__Connections__Default__password",
	"port":     "TYPO3_CONF_VARS__DB__Connections__Default__port",
}

type typo3Parser struct{}

func (typo3Parser) Framework() Framework { return FrameworkTYPO3 }

func (p typo3Parser) Extract(ctx context.Context, r Runner, endpoint config.EndpointConfig) (config.DatabaseCredentials, error) {
	content, err := readFile(ctx, r, endpoint.Path)
	if err != nil {
		return config.DatabaseCredentials{}, err
	}
	if strings.HasSuffix(endpoint.Path, ".env") {
		return ParseTYPO3Env(content, endpoint.Keys)
	}
	return ParseTYPO3Configuration(content)
}

// ParseTYPO3Configuration reads the DB section of a
// LocalConfiguration.php style array. Both the Connections/Default
// layout (v8+) and the flat legacy layout (v7 and earlier) are
// understood.
func ParseTYPO3Configuration(source string) (config.DatabaseCredentials, error) {
	tree, err := ParsePHPArrayFile(source)
	if err != nil {
		return config.DatabaseCredentials{}, parseError(FrameworkTYPO3, err)
	}

	// AdditionalConfiguration.php nests everything one level deeper.
	db, ok := lookupPath(tree, "DB").(map[string]interface{})
	if !ok {
		db, ok = lookupPath(tree, "TYPO3_CONF_VARS", "DB").(map[string]interface{})
	}
	if !ok {
		return config.DatabaseCredentials{}, parseFailure(FrameworkTYPO3, "DB")
	}

	var creds config.DatabaseCredentials
	if _, hasConnections := db["Connections"]; hasConnections {
		creds = config.DatabaseCredentials{
			Name:     stringAt(db, "Connections", "Default", "dbname"),
			Host:     stringAt(db, "Connections", "Default", "host"),
			User:     stringAt(db, "Connections", "Default", "user"),
			Password: stringAt(db, "Connections", "Default", "password"),
			Port:     intAt(db, "Connections", "Default", "port"),
		}
	} else {
		creds = config.DatabaseCredentials{
			Name:     stringAt(db, "database"),
			Host:     stringAt(db, "host"),
			User:     stringAt(db, "username"),
			Password: stringAt(db, "password"),
			Port:     intAt(db, "port"),
		}
	}

	if missing := firstMissing(creds); missing != "" {
		return creds, parseFailure(FrameworkTYPO3, missing)
	}
	return creds, nil
}

// ParseTYPO3Env reads dotenv-style TYPO3 configuration. overrides
// remaps individual credential fields to custom variable names.
func ParseTYPO3Env(source string, overrides map[string]string) (config.DatabaseCredentials, error) {
	env, err := godotenv.Unmarshal(source)
	if err != nil {
		return config.DatabaseCredentials{}, parseError(FrameworkTYPO3, err)
	}

	keyFor := func(field string) string {
		if override, ok := overrides[field]; ok && override != "" {
			return override
		}
		return typo3EnvKeys[field]
	}

	port, _ := strconv.Atoi(env[keyFor("port")])
	creds := config.DatabaseCredentials{
		Name:     env[keyFor("name")],
		Host:     env[keyFor("host")],
		User:     env[keyFor("user")],
		Password: env[keyFor("password")],
		Port:     port,
	}

	if missing := firstMissing(creds); missing != "" {
		return creds, parseFailure(FrameworkTYPO3, missing)
	}
	return creds, nil
}
