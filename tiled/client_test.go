package tiled

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestNewClient_RejectsRelativeAddress(t *testing.T) {
	for _, address := range []string{"", "not-a-url", "/just/a/path"} {
		t.Run(address, func(t *testing.T) {
			if _, err := NewClient(address); err == nil {
				t.Errorf("expected error for %q", address)
			}
		})
	}
}

func TestAppMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"api_version": 0, "meta": {}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatal(err)
	}

	meta, err := client.AppMetadata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if meta.APIVersion != 0 {
		t.Errorf("expected api version 0, got %d", meta.APIVersion)
	}
}

func TestSearch_ForwardsAuthAndQuery(t *testing.T) {
	var gotAuth, gotFilter string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFilter = r.URL.Query().Get("filter[eq][condition][key]")
		w.Write([]byte(`{"data": [], "error": null, "links": {"self": ""}, "meta": {}}`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	query := url.Values{"filter[eq][condition][key]": {"start.instrument_session"}}

	if _, err := client.Search(context.Background(), "", "auth_value", query); err != nil {
		t.Fatal(err)
	}

	if gotAuth != "auth_value" {
		t.Errorf("expected auth forwarded, got %q", gotAuth)
	}
	if gotFilter != "start.instrument_session" {
		t.Errorf("expected filter forwarded, got %q", gotFilter)
	}
}

func TestTableFull_SendsColumns(t *testing.T) {
	var gotColumns []string
	var gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/table/full/run-1/primary/data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotColumns = r.URL.Query()["column"]
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"x": [1, 2], "y": [3, 4]}`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	table, err := client.TableFull(context.Background(), "run-1/primary/data", []string{"x", "y"}, "")
	if err != nil {
		t.Fatal(err)
	}

	if gotAccept != "application/json" {
		t.Errorf("expected json accept header, got %q", gotAccept)
	}
	if len(gotColumns) != 2 || gotColumns[0] != "x" || gotColumns[1] != "y" {
		t.Errorf("expected column params, got %v", gotColumns)
	}
	if len(table["x"]) != 2 {
		t.Errorf("expected 2 values for x, got %d", len(table["x"]))
	}
}

func TestRequestError_On4xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such node", http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	_, err := client.AppMetadata(context.Background())

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", reqErr.Status)
	}
}

func TestInternalError_On5xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Tiled is broken inside"))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	_, err := client.AppMetadata(context.Background())

	var intErr *InternalError
	if !errors.As(err, &intErr) {
		t.Fatalf("expected InternalError, got %v", err)
	}
	if intErr.Status != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", intErr.Status)
	}
	if intErr.Body != "Tiled is broken inside" {
		t.Errorf("unexpected body %q", intErr.Body)
	}
}

func TestResponseError_OnUndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	_, err := client.AppMetadata(context.Background())

	var resErr *ResponseError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResponseError, got %v", err)
	}
}

func TestTransportError_OnUnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, _ := NewClient(server.URL)
	_, err := client.AppMetadata(context.Background())

	if err == nil {
		t.Fatal("expected connection error")
	}
	var reqErr *RequestError
	var intErr *InternalError
	if errors.As(err, &reqErr) || errors.As(err, &intErr) {
		t.Errorf("transport failure should not map to a status error, got %v", err)
	}
}

func TestDownload_BuildsAssetURL(t *testing.T) {
	var gotPath, gotID, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotID = r.URL.Query().Get("id")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{1, 2, 3})
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	res, err := client.Download(context.Background(), "run-1", "primary", "det", 7, "Bearer tok")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if gotPath != "/api/v1/asset/bytes/run-1/primary/det" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotID != "7" {
		t.Errorf("expected id=7, got %q", gotID)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("expected auth forwarded, got %q", gotAuth)
	}
}
