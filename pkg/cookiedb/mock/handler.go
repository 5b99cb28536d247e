package mock

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cookiedb/cookiedb-go/pkg/cookiedb"
)

// Handler exposes the mock over the CookieDB wire protocol: every endpoint
// is a POST carrying a bearer token, results and errors travel in the
// response body. Acknowledgements use the plain-text "success" sentinel,
// failures the {"error": ...} envelope.
func (m *Mock) Handler() http.Handler {
	return http.HandlerFunc(m.serveHTTP)
}

func (m *Mock) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	admin, ok := m.authenticate(token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	segments := splitRoute(r.URL.Path)
	if len(segments) == 0 {
		writeError(w, http.StatusNotFound, "unknown endpoint")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	defer r.Body.Close()

	ctx := r.Context()
	switch op := segments[0]; {
	case op == "create" && len(segments) == 2:
		var schema cookiedb.Schema
		if len(body) > 0 {
			if err := json.Unmarshal(body, &schema); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		ack(w, m.CreateTable(ctx, segments[1], schema))
	case op == "edit" && len(segments) == 2:
		var edit cookiedb.EditTable
		if err := json.Unmarshal(body, &edit); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ack(w, m.EditTable(ctx, segments[1], edit))
	case op == "drop" && len(segments) == 2:
		ack(w, m.DropTable(ctx, segments[1]))
	case op == "meta" && len(segments) == 1:
		meta, err := m.Meta(ctx)
		reply(w, meta, err)
	case op == "meta" && len(segments) == 2:
		meta, err := m.TableMeta(ctx, segments[1])
		reply(w, meta, err)
	case op == "insert" && len(segments) == 2:
		m.serveInsert(w, r, segments[1], body)
	case op == "get" && len(segments) == 3:
		var req struct {
			ExpandKeys bool `json:"expand_keys"`
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		doc, err := m.Get(ctx, segments[1], segments[2], req.ExpandKeys)
		reply(w, doc, err)
	case op == "update" && len(segments) == 3:
		var partial cookiedb.Document
		if err := json.Unmarshal(body, &partial); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ack(w, m.Update(ctx, segments[1], segments[2], partial))
	case op == "delete" && len(segments) == 3:
		ack(w, m.Delete(ctx, segments[1], segments[2]))
	case op == "delete" && len(segments) == 2:
		var req struct {
			Where string `json:"where"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		keys, err := m.DeleteByQuery(ctx, segments[1], req.Where)
		reply(w, keys, err)
	case op == "select" && len(segments) == 2:
		m.serveSelect(w, r, segments[1], body)
	case op == "create_user" && len(segments) == 1:
		if !admin {
			writeError(w, http.StatusForbidden, "administrator privilege required")
			return
		}
		var opts cookiedb.CreateUserOptions
		if len(body) > 0 {
			if err := json.Unmarshal(body, &opts); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		user, err := m.CreateUser(ctx, opts)
		reply(w, user, err)
	case op == "delete_user" && len(segments) == 2:
		if !admin {
			writeError(w, http.StatusForbidden, "administrator privilege required")
			return
		}
		ack(w, m.DeleteUser(ctx, segments[1]))
	case op == "regenerate_token" && len(segments) == 2:
		if !admin {
			writeError(w, http.StatusForbidden, "administrator privilege required")
			return
		}
		user, err := m.RegenerateToken(ctx, segments[1])
		reply(w, user, err)
	default:
		writeError(w, http.StatusNotFound, "unknown endpoint")
	}
}

func (m *Mock) serveInsert(w http.ResponseWriter, r *http.Request, tableName string, body []byte) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var docs []cookiedb.Document
		if err := json.Unmarshal(body, &docs); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		keys, err := m.InsertMany(r.Context(), tableName, docs)
		reply(w, keys, err)
		return
	}
	var doc cookiedb.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := m.Insert(r.Context(), tableName, doc)
	reply(w, key, err)
}

func (m *Mock) serveSelect(w http.ResponseWriter, r *http.Request, tableName string, body []byte) {
	var req struct {
		Where      string          `json:"where"`
		MaxResults int             `json:"max_results"`
		ExpandKeys bool            `json:"expand_keys"`
		Alias      cookiedb.Alias  `json:"alias"`
		Order      *cookiedb.Order `json:"order"`
		ShowKeys   *bool           `json:"show_keys"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	docs, err := m.Select(r.Context(), tableName, req.Where, &cookiedb.SelectOptions{
		MaxResults: req.MaxResults,
		ExpandKeys: req.ExpandKeys,
		Alias:      req.Alias,
		Order:      req.Order,
		ShowKeys:   req.ShowKeys,
	})
	reply(w, docs, err)
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

func splitRoute(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return nil
	}
	return parts
}

func ack(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, "success")
}

func reply(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
