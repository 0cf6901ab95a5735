package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var httpCheck HTTPCheck
var httpHeaders []string

var httpCmd = &cobra.Command{
	Use:   "http <url>",
	Short: "Poll an HTTP endpoint until it answers with the expected status",
	Example: `  stepwait http http://localhost:8080/healthz --timeout 30s --interval 1s
  stepwait http http://localhost:8080/orders/42 --status 200 --contains shipped`,
	Args: cobra.ExactArgs(1),
	RunE: runHTTP,
}

func init() {
	rootCmd.AddCommand(httpCmd)

	httpCmd.Flags().StringVarP(&httpCheck.Method, "method", "X", "GET", "request method")
	httpCmd.Flags().StringArrayVarP(&httpHeaders, "header", "H", nil, "request header as 'Key: Value', may be repeated")
	httpCmd.Flags().StringVarP(&httpCheck.Body, "data", "d", "", "request body")
	httpCmd.Flags().IntVar(&httpCheck.Status, "status", 200, "expected status code")
	httpCmd.Flags().StringVar(&httpCheck.Contains, "contains", "", "fragment the response body should contain")
	httpCmd.Flags().Float64Var(&httpCheck.RequestsPerSecond, "rps", 0, "maximum requests per second, 0 for no limit")
}

func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Key: Value'", h)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}

func runHTTP(cmd *cobra.Command, args []string) error {
	headers, err := parseHeaders(httpHeaders)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	check := &Check{Name: fmt.Sprintf("%s %s", httpCheck.Method, args[0]), HTTP: &httpCheck}
	check.HTTP.URL = args[0]
	check.HTTP.Headers = headers
	return rt.finish(cmd, check.run(cmd.Context(), rt))
}
