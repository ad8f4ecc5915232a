// Package credentials extracts database connection values from the
// configuration files of supported web frameworks. Files are treated as
// untrusted input: they are parsed structurally and never executed.
package credentials

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"db-sync-tool/internal/config"
	apperrors "db-sync-tool/internal/errors"
	"db-sync-tool/internal/security"
)

// Framework identifies a supported credential source.
type Framework string

const (
	FrameworkTYPO3     Framework = "typo3"
	FrameworkSymfony   Framework = "symfony"
	FrameworkDrupal    Framework = "drupal"
	FrameworkWordPress Framework = "wordpress"
	FrameworkLaravel   Framework = "laravel"
)

// Runner executes a shell command and returns its stdout. Both local
// and SSH-backed runners satisfy it.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// Parser turns an endpoint's configuration source into credentials.
type Parser interface {
	Framework() Framework
	Extract(ctx context.Context, r Runner, endpoint config.EndpointConfig) (config.DatabaseCredentials, error)
}

// parsers holds one Parser per framework. Lookup replaces the cascading
// per-framework conditionals the extraction logic would otherwise need.
var parsers = map[Framework]Parser{
	FrameworkTYPO3:     typo3Parser{},
	FrameworkSymfony:   symfonyParser{},
	FrameworkDrupal:    drupalParser{},
	FrameworkWordPress: wordpressParser{},
	FrameworkLaravel:   laravelParser{},
}

// ParserFor returns the parser for the given framework name.
func ParserFor(name string) (Parser, error) {
	p, ok := parsers[Framework(strings.ToLower(name))]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrorTypeConfiguration,
			"unsupported framework type %q", name)
	}
	return p, nil
}

// InferFramework guesses the framework from the configured path. An
// .env file is ambiguous between TYPO3, Symfony and Laravel and needs
// an explicit type.
func InferFramework(path string) (Framework, error) {
	switch base := filepath.Base(path); base {
	case "LocalConfiguration.php", "AdditionalConfiguration.php", "additional.php":
		return FrameworkTYPO3, nil
	case "settings.php":
		return FrameworkDrupal, nil
	case "wp-config.php":
		return FrameworkWordPress, nil
	case "parameters.yml":
		return FrameworkSymfony, nil
	case ".env":
		return "", apperrors.Newf(apperrors.ErrorTypeConfiguration,
			"%s is ambiguous, set an explicit framework type", path)
	default:
		return "", apperrors.Newf(apperrors.ErrorTypeConfiguration,
			"cannot infer a framework from %q, set an explicit type", path)
	}
}

// Resolve produces complete credentials for an endpoint. A configured
// path triggers framework extraction; a manual db block overrides the
// parsed values field by field. Missing mandatory fields after merging
// are a hard error.
func Resolve(ctx context.Context, r Runner, endpoint config.EndpointConfig, frameworkType string) (config.DatabaseCredentials, error) {
	creds := config.DatabaseCredentials{}

	if endpoint.Path != "" {
		framework := Framework(strings.ToLower(frameworkType))
		if frameworkType == "" {
			inferred, err := InferFramework(endpoint.Path)
			if err != nil {
				return creds, err
			}
			framework = inferred
		}
		parser, ok := parsers[framework]
		if !ok {
			return creds, apperrors.Newf(apperrors.ErrorTypeConfiguration,
				"unsupported framework type %q", frameworkType)
		}
		parsed, err := parser.Extract(ctx, r, endpoint)
		if err != nil {
			return creds, err
		}
		creds = parsed
	}

	creds = creds.Merge(endpoint.DB)
	if creds.Port == 0 {
		creds.Port = config.DefaultMySQLPort
	}
	if creds.Host == "" {
		creds.Host = "127.0.0.1"
	}

	if missing := creds.MissingField(); missing != "" {
		return creds, apperrors.Newf(apperrors.ErrorTypeParse,
			"incomplete database credentials: missing %s", missing)
	}
	return creds, nil
}

// readFile fetches a configuration file's contents through the runner,
// local or remote alike.
func readFile(ctx context.Context, r Runner, path string) (string, error) {
	out, err := r.Run(ctx, "cat "+security.QuoteShellArg(path))
	if err != nil {
		return "", apperrors.New(apperrors.ErrorTypeParse,
			fmt.Sprintf("cannot read configuration file %s", path), err)
	}
	return out, nil
}

func parseError(framework Framework, err error) error {
	return apperrors.New(apperrors.ErrorTypeParse,
		fmt.Sprintf("cannot parse %s configuration", framework), err)
}

func parseFailure(framework Framework, field string) error {
	return apperrors.Newf(apperrors.ErrorTypeParse,
		"%s configuration is missing the %s field", framework, field)
}

// firstMissing reports the first empty mandatory credential field.
func firstMissing(c config.DatabaseCredentials) string {
	return c.MissingField()
}
