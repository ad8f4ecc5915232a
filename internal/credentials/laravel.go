package credentials

import (
	"context"
	"strconv"

	"github.com/joho/godotenv"

	"db-sync-tool/internal/config"
)

type laravelParser struct{}

func (laravelParser) Framework() Framework { return FrameworkLaravel }

func (p laravelParser) Extract(ctx context.Context, r Runner, endpoint config.EndpointConfig) (config.DatabaseCredentials, error) {
	content, err := readFile(ctx, r, endpoint.Path)
	if err != nil {
		return config.DatabaseCredentials{}, err
	}
	return ParseLaravelEnv(content)
}

// ParseLaravelEnv reads the DB_* variables from a Laravel .env file.
func ParseLaravelEnv(source string) (config.DatabaseCredentials, error) {
	env, err := godotenv.Unmarshal(source)
	if err != nil {
		return config.DatabaseCredentials{}, parseError(FrameworkLaravel, err)
	}

	port, _ := strconv.Atoi(env["DB_PORT"])
	creds := config.DatabaseCredentials{
		Name:     env["DB_DATABASE"],
		Host:     env["DB_HOST"],
		User:     env["DB_USERNAME"],
		Password: env["DB_PASSWORD"],
		Port:     port,
	}
	if missing := firstMissing(creds); missing != "" {
		return creds, parseFailure(FrameworkLaravel, missing)
	}
	return creds, nil
}
