package cookiedb_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cookiedb/cookiedb-go/pkg/cookiedb"
)

// recordedRequest captures what the driver put on the wire.
type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   []byte
}

// newFakeServer answers every request with the supplied body and records
// what arrived.
func newFakeServer(t *testing.T, status int, contentType, respond string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		*rec = recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		io.WriteString(w, respond)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newTestClient(t *testing.T, baseURL string) *cookiedb.Client {
	t.Helper()
	client, err := cookiedb.New(baseURL, "secret-token")
	require.NoError(t, err)
	return client
}

func TestCreateTableSendsSchema(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "text/plain", "success")
	client := newTestClient(t, srv.URL)

	schema := cookiedb.Schema{
		"name": cookiedb.Column{Kind: cookiedb.KindString},
		"age":  cookiedb.Column{Kind: cookiedb.KindNumber, Nullable: true},
	}
	require.NoError(t, client.CreateTable(context.Background(), "users", schema))

	require.Equal(t, http.MethodPost, rec.Method)
	require.Equal(t, "/create/users", rec.Path)
	require.Equal(t, "Bearer secret-token", rec.Auth)
	require.JSONEq(t, `{"age":"nullable number","name":"string"}`, string(rec.Body))
}

func TestCreateTableSchemalessSendsEmptyBody(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "text/plain", "success")
	client := newTestClient(t, srv.URL)

	require.NoError(t, client.CreateTable(context.Background(), "scratch", nil))
	require.Empty(t, rec.Body)
}

func TestEditTableBody(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "text/plain", "success")
	client := newTestClient(t, srv.URL)

	err := client.EditTable(context.Background(), "users", cookiedb.EditTable{
		Name:  "people",
		Alias: cookiedb.Alias{"full_name": "$name"},
	})
	require.NoError(t, err)
	require.Equal(t, "/edit/users", rec.Path)
	require.JSONEq(t, `{"name":"people","alias":{"full_name":"$name"}}`, string(rec.Body))
}

func TestInsertReturnsKey(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "application/json", `"key-1"`)
	client := newTestClient(t, srv.URL)

	key, err := client.Insert(context.Background(), "users", cookiedb.Document{"name": "cookie_fan"})
	require.NoError(t, err)
	require.Equal(t, "key-1", key)
	require.Equal(t, "/insert/users", rec.Path)
	require.JSONEq(t, `{"name":"cookie_fan"}`, string(rec.Body))
}

func TestInsertManyPreservesOrder(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "application/json", `["k1","k2","k3"]`)
	client := newTestClient(t, srv.URL)

	keys, err := client.InsertMany(context.Background(), "users", []cookiedb.Document{
		{"name": "a"}, {"name": "b"}, {"name": "c"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"k1", "k2", "k3"}, keys)

	var sent []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body, &sent))
	require.Equal(t, "a", sent[0]["name"])
	require.Equal(t, "c", sent[2]["name"])
}

func TestGetSendsExpandKeys(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "application/json", `{"name":"cookie_fan","key":"k1"}`)
	client := newTestClient(t, srv.URL)

	doc, err := client.Get(context.Background(), "users", "k1", &cookiedb.GetOptions{ExpandKeys: true})
	require.NoError(t, err)
	require.Equal(t, "k1", doc.Key())
	require.Equal(t, "/get/users/k1", rec.Path)
	require.JSONEq(t, `{"expand_keys":true}`, string(rec.Body))
}

func TestGetDefaultsExpandKeysFalse(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "application/json", `{}`)
	client := newTestClient(t, srv.URL)

	_, err := client.Get(context.Background(), "users", "k1", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"expand_keys":false}`, string(rec.Body))
}

func TestUpdateSendsPartialDocument(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "text/plain", "success")
	client := newTestClient(t, srv.URL)

	err := client.Update(context.Background(), "users", "k1", cookiedb.Document{"age": 21})
	require.NoError(t, err)
	require.Equal(t, "/update/users/k1", rec.Path)
	require.JSONEq(t, `{"age":21}`, string(rec.Body))
}

func TestDeleteByQueryBodyAndResult(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "application/json", `["k2","k5"]`)
	client := newTestClient(t, srv.URL)

	keys, err := client.DeleteByQuery(context.Background(), "users", `gt($age, 30)`)
	require.NoError(t, err)
	require.Equal(t, []string{"k2", "k5"}, keys)
	require.Equal(t, "/delete/users", rec.Path)
	require.JSONEq(t, `{"where":"gt($age, 30)"}`, string(rec.Body))
}

func TestDeleteByQueryEmptyResult(t *testing.T) {
	srv, _ := newFakeServer(t, http.StatusOK, "application/json", `[]`)
	client := newTestClient(t, srv.URL)

	keys, err := client.DeleteByQuery(context.Background(), "users", `eq($name, "nobody")`)
	require.NoError(t, err)
	require.NotNil(t, keys)
	require.Empty(t, keys)
}

func TestSelectBodyShaping(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "application/json", `[]`)
	client := newTestClient(t, srv.URL)

	showKeys := false
	_, err := client.Select(context.Background(), "users", `starts_with($name, "cookie")`, &cookiedb.SelectOptions{
		MaxResults: 5,
		ExpandKeys: true,
		Order:      &cookiedb.Order{By: "age", Descending: true},
		ShowKeys:   &showKeys,
	})
	require.NoError(t, err)
	require.Equal(t, "/select/users", rec.Path)
	require.JSONEq(t, `{
		"where": "starts_with($name, \"cookie\")",
		"max_results": 5,
		"expand_keys": true,
		"order": {"by": "age", "descending": true},
		"show_keys": false
	}`, string(rec.Body))
}

func TestSelectOmitsUnsetOptions(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "application/json", `[]`)
	client := newTestClient(t, srv.URL)

	_, err := client.Select(context.Background(), "users", "", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(rec.Body))
}

func TestUserAdministration(t *testing.T) {
	srv, rec := newFakeServer(t, http.StatusOK, "application/json", `{"username":"u","token":"t"}`)
	client := newTestClient(t, srv.URL)

	user, err := client.CreateUser(context.Background(), cookiedb.CreateUserOptions{Username: "u", Token: "t"})
	require.NoError(t, err)
	require.Equal(t, &cookiedb.User{Username: "u", Token: "t"}, user)
	require.Equal(t, "/create_user", rec.Path)
	require.JSONEq(t, `{"username":"u","token":"t","admin":false}`, string(rec.Body))

	user, err = client.RegenerateToken(context.Background(), "u")
	require.NoError(t, err)
	require.Equal(t, "/regenerate_token/u", rec.Path)
	require.Empty(t, rec.Body)
	require.Equal(t, "u", user.Username)
}

func TestServerErrorSurfacesVerbatim(t *testing.T) {
	srv, _ := newFakeServer(t, http.StatusBadRequest, "application/json", `{"error":"table \"users\" already exists"}`)
	client := newTestClient(t, srv.URL)

	err := client.CreateTable(context.Background(), "users", nil)
	var serverErr *cookiedb.ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, `table "users" already exists`, serverErr.Message)
}

func TestLegacyTextErrorSurfacesVerbatim(t *testing.T) {
	srv, _ := newFakeServer(t, http.StatusOK, "text/plain", "document does not exist")
	client := newTestClient(t, srv.URL)

	err := client.Delete(context.Background(), "users", "missing")
	var serverErr *cookiedb.ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "document does not exist", serverErr.Message)
}

func TestMalformedResultIsTransportError(t *testing.T) {
	srv, _ := newFakeServer(t, http.StatusOK, "text/plain", "this is not JSON")
	client := newTestClient(t, srv.URL)

	_, err := client.Get(context.Background(), "users", "k1", nil)
	var transportErr *cookiedb.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, "get", transportErr.Op)
}

func TestConnectionFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // refuse connections

	client := newTestClient(t, srv.URL)
	_, err := client.Meta(context.Background())
	var transportErr *cookiedb.TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestCancelledContextAbortsInFlightRequest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Meta(ctx)
		errCh <- err
	}()
	<-started
	cancel()

	err := <-errCh
	require.Error(t, err)
	var transportErr *cookiedb.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestArgumentGuards(t *testing.T) {
	srv, _ := newFakeServer(t, http.StatusOK, "application/json", `{}`)
	client := newTestClient(t, srv.URL)
	ctx := context.Background()

	_, err := client.Get(ctx, "users", "", nil)
	require.Error(t, err)
	_, err = client.Insert(ctx, "users", nil)
	require.Error(t, err)
	_, err = client.InsertMany(ctx, "users", nil)
	require.Error(t, err)
	require.Error(t, client.Update(ctx, "users", "k1", nil))
	_, err = client.DeleteByQuery(ctx, "users", " ")
	require.Error(t, err)
	require.Error(t, client.DeleteUser(ctx, ""))
}
