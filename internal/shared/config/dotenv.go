package config

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// loadEnvFiles applies local .env files. Like the YAML overlay, variables
// already present in the process environment are never replaced, and the
// first file to define a key wins.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		pairs := parseDotenv(f)
		_ = f.Close()
		for _, kv := range pairs {
			if _, exists := os.LookupEnv(kv[0]); !exists {
				os.Setenv(kv[0], kv[1])
			}
		}
	}
}

// parseDotenv accepts KEY=value lines with optional "export " prefixes,
// single or double quoted values and trailing " #" comments on unquoted ones.
func parseDotenv(r io.Reader) [][2]string {
	var out [][2]string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" || strings.ContainsAny(key, " \t") {
			continue
		}
		out = append(out, [2]string{key, dotenvValue(strings.TrimSpace(val))})
	}
	return out
}

func dotenvValue(v string) string {
	if len(v) >= 2 {
		switch q := v[0]; q {
		case '"', '\'':
			if end := strings.LastIndexByte(v, q); end > 0 {
				inner := v[1:end]
				if q == '"' {
					inner = strings.ReplaceAll(inner, `\n`, "\n")
				}
				return inner
			}
		}
	}
	if i := strings.Index(v, " #"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v
}
