// Command configgen writes starter configuration files for the courseoj
// server and CLI. It fills in the values every deployment must provide
// and leaves tunables to the server's own defaults.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func main() {
	outputDir := flag.String("output-dir", "configs", "Directory to write config files into")
	dsn := flag.String("dsn", "courseoj:courseoj@tcp(127.0.0.1:3306)/courseoj?parseTime=true", "MySQL DSN")
	redisAddr := flag.String("redis", "127.0.0.1:6379", "Redis address")
	jwtSecret := flag.String("jwt-secret", "", "JWT signing secret shared with the identity service")
	executorURL := flag.String("executor", "http://127.0.0.1:9000", "Sandbox executor base URL")
	kafkaBroker := flag.String("kafka", "", "Kafka broker address; empty disables async re-verification")
	serverAddr := flag.String("addr", "0.0.0.0:8080", "HTTP listen address")
	flag.Parse()

	if *jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "jwt-secret is required")
		os.Exit(1)
	}

	serverConfig := buildServerConfig(*serverAddr, *dsn, *redisAddr, *jwtSecret, *executorURL, *kafkaBroker)
	if err := writeYAML(filepath.Join(*outputDir, "server.yaml"), serverConfig); err != nil {
		fmt.Fprintf(os.Stderr, "write server config failed: %v\n", err)
		os.Exit(1)
	}

	cliConfig := buildCLIConfig(*serverAddr)
	if err := writeYAML(filepath.Join(*outputDir, "cli.yaml"), cliConfig); err != nil {
		fmt.Fprintf(os.Stderr, "write cli config failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s and %s\n",
		filepath.Join(*outputDir, "server.yaml"),
		filepath.Join(*outputDir, "cli.yaml"))
}

// buildServerConfig mirrors the key layout cmd/server expects. The shared
// database/redis/kafka and logger blocks are untagged structs, so their
// keys are the lowercased field names.
func buildServerConfig(addr, dsn, redisAddr, jwtSecret, executorURL, kafkaBroker string) map[string]any {
	config := map[string]any{
		"server": map[string]any{
			"addr": addr,
		},
		"logger": map[string]any{
			"level":      "info",
			"format":     "json",
			"outputpath": "stdout",
		},
		"auth": map[string]any{
			"jwtSecret": jwtSecret,
		},
		"database": map[string]any{
			"dsn": dsn,
		},
		"redis": map[string]any{
			"addr": redisAddr,
		},
		"executor": map[string]any{
			"baseURL": executorURL,
		},
		"judge": map[string]any{
			"caseConcurrency": 4,
			"workerPoolSize":  8,
		},
	}
	if kafkaBroker != "" {
		config["kafka"] = map[string]any{
			"brokers": []string{kafkaBroker},
		}
		config["reverify"] = map[string]any{
			"topic":         "problem-reverify",
			"consumerGroup": "courseoj-reverify",
		}
	}
	return config
}

func buildCLIConfig(serverAddr string) map[string]any {
	host, port, err := net.SplitHostPort(serverAddr)
	if err != nil || port == "" {
		host, port = "127.0.0.1", "8080"
	}
	// A wildcard listen address is not a dialable host.
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return map[string]any{
		"baseURL":        "http://" + net.JoinHostPort(host, port),
		"tokenStatePath": "configs/cli_state.json",
		"prettyJSON":     true,
	}
}

func writeYAML(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir failed: %w", err)
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal yaml failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write yaml failed: %w", err)
	}
	return nil
}
