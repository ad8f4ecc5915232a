package credentials

import (
	"context"
	"encoding/json"
	"strconv"

	"db-sync-tool/internal/config"
	apperrors "db-sync-tool/internal/errors"
	"db-sync-tool/internal/security"
)

// drupalParser obtains credentials by running drush against the
// installation rather than parsing settings.php, which commonly builds
// its database array from includes and environment lookups that a
// structural parser cannot follow.
type drupalParser struct{}

func (drupalParser) Framework() Framework { return FrameworkDrupal }

func (p drupalParser) Extract(ctx context.Context, r Runner, endpoint config.EndpointConfig) (config.DatabaseCredentials, error) {
	command := "cd " + security.QuoteShellArg(installationDir(endpoint.Path)) +
		" && drush core-status --format=json --fields=db-name,db-hostname,db-username,db-password,db-port"
	out, err := r.Run(ctx, command)
	if err != nil {
		return config.DatabaseCredentials{}, apperrors.New(apperrors.ErrorTypeParse,
			"drush core-status failed", err)
	}
	return ParseDrushStatus(out)
}

// installationDir strips a trailing settings.php so the path may point
// at either the file or the site directory.
func installationDir(path string) string {
	const settings = "/settings.php"
	if len(path) > len(settings) && path[len(path)-len(settings):] == settings {
		return path[:len(path)-len(settings)]
	}
	return path
}

// ParseDrushStatus reads the JSON document drush core-status emits.
// db-port arrives as either a number or a string depending on the
// drush version.
func ParseDrushStatus(out string) (config.DatabaseCredentials, error) {
	var status struct {
		Name     string          `json:"db-name"`
		Host     string          `json:"db-hostname"`
		User     string          `json:"db-username"`
		Password string          `json:"db-password"`
		Port     json.RawMessage `json:"db-port"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		return config.DatabaseCredentials{}, parseError(FrameworkDrupal, err)
	}

	port := 0
	if len(status.Port) > 0 {
		text := string(status.Port)
		if unquoted, err := strconv.Unquote(text); err == nil {
			text = unquoted
		}
		port, _ = strconv.Atoi(text)
	}

	creds := config.DatabaseCredentials{
		Name:     status.Name,
		Host:     status.Host,
		User:     status.User,
		Password: status.Password,
		Port:     port,
	}
	if missing := firstMissing(creds); missing != "" {
		return creds, parseFailure(FrameworkDrupal, missing)
	}
	return creds, nil
}
