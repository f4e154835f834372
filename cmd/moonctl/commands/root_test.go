package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/florianilch/moonctl/internal/apierror"
)

func runCLI(t *testing.T, baseURL string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.Writer = &out

	argv := append([]string{"moonctl", "--auth--storage", "memory", "--connection--base-url", baseURL, "--retry--max-attempts", "1"}, args...)
	err := cmd.Run(context.Background(), argv)
	return out.String(), err
}

func TestHealthCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"ok","name":"moon","version":"1.0.0"}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "health")
	if err != nil {
		t.Fatalf("health error = %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if got["status"] != "ok" || got["version"] != "1.0.0" {
		t.Errorf("output = %v", got)
	}
}

func TestCommandRendersAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NOT_FOUND","message":"collection not found"}`))
	}))
	defer srv.Close()

	_, err := runCLI(t, srv.URL, "collections", "get", "missing")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !apierror.HasCode(err, "NOT_FOUND") {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestCommandMissingArgument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	_, err := runCLI(t, srv.URL, "records", "get", "products")
	if err == nil || !strings.Contains(err.Error(), "<id>") {
		t.Errorf("error = %v, want missing <id>", err)
	}
}

func TestParseColumns(t *testing.T) {
	columns, err := parseColumns([]string{"title:string", "price:integer:nullable"})
	if err != nil {
		t.Fatalf("parseColumns() error = %v", err)
	}
	if len(columns) != 2 || columns[0].Name != "title" || columns[1].Type != "integer" || !columns[1].Nullable {
		t.Errorf("columns = %+v", columns)
	}

	for _, bad := range []string{"title", ":string", "price:integer:unique"} {
		if _, err := parseColumns([]string{bad}); err == nil {
			t.Errorf("parseColumns(%q) should fail", bad)
		}
	}
}

func TestReadRecord(t *testing.T) {
	record, err := readRecord(`{"title":"Moon rock"}`, nil)
	if err != nil || record["title"] != "Moon rock" {
		t.Errorf("readRecord() = %v, %v", record, err)
	}

	record, err = readRecord("-", strings.NewReader(`{"price":10}`))
	if err != nil || record["price"] != float64(10) {
		t.Errorf("readRecord(stdin) = %v, %v", record, err)
	}

	for _, bad := range []string{"[1,2]", "null", "not json"} {
		if _, err := readRecord(bad, nil); err == nil {
			t.Errorf("readRecord(%q) should fail", bad)
		}
	}
}
