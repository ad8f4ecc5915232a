package credentials

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"db-sync-tool/internal/config"
)

// defineRe matches define('KEY', 'value') statements with either quote
// style. Values containing the closing quote are not expected in
// wp-config constants.
var defineRe = regexp.MustCompile(`define\(\s*['"]([A-Z_]+)['"]\s*,\s*['"]([^'"]*)['"]\s*\)`)

type wordpressParser struct{}

func (wordpressParser) Framework() Framework { return FrameworkWordPress }

func (p wordpressParser) Extract(ctx context.Context, r Runner, endpoint config.EndpointConfig) (config.DatabaseCredentials, error) {
	content, err := readFile(ctx, r, endpoint.Path)
	if err != nil {
		return config.DatabaseCredentials{}, err
	}
	return ParseWordPressConfig(content)
}

// ParseWordPressConfig collects the DB_* constants from wp-config.php.
// DB_HOST may carry a port as host:port.
func ParseWordPressConfig(source string) (config.DatabaseCredentials, error) {
	constants := make(map[string]string)
	for _, match := range defineRe.FindAllStringSubmatch(source, -1) {
		constants[match[1]] = match[2]
	}

	host := constants["DB_HOST"]
	port := 0
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		if n, err := strconv.Atoi(host[idx+1:]); err == nil {
			port = n
			host = host[:idx]
		}
	}

	creds := config.DatabaseCredentials{
		Name:     constants["DB_NAME"],
		Host:     host,
		User:     constants["DB_USER"],
		Password: constants["DB_PASSWORD"],
		Port:     port,
	}
	if missing := firstMissing(creds); missing != "" {
		return creds, parseFailure(FrameworkWordPress, missing)
	}
	return creds, nil
}
