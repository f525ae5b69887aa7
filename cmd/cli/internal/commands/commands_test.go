package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/certifychain/certifychain/internal/certificates"
	"github.com/certifychain/certifychain/internal/credentials"
	"github.com/certifychain/certifychain/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend is a minimal CertifyChain API.
type backend struct {
	t       *testing.T
	srv     *httptest.Server
	access  string
	refresh string

	// cacheable marks listings fresh for a minute.
	cacheable bool

	mu         sync.Mutex
	hits       map[string]int
	issued     []models.IssueCertificateRequest
	registered []map[string]any
	patched    map[string]any
}

func newBackend(t *testing.T) *backend {
	t.Helper()

	user := &models.User{ID: 7, Email: "registrar@uni.example", FirstName: "Ada", LastName: "Lovelace", UserType: models.UserTypeInstitution}

	access, err := credentials.MintTokenExpiringAt("access", time.Now().Add(time.Hour), user)
	require.NoError(t, err)
	refresh, err := credentials.MintTokenExpiringAt("refresh", time.Now().Add(24*time.Hour), nil)
	require.NoError(t, err)

	b := &backend{t: t, access: access, refresh: refresh, hits: map[string]int{}}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)

	return b
}

func (b *backend) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.hits[r.Method+" "+r.URL.Path]++
	b.mu.Unlock()

	authorized := r.Header.Get("Authorization") == "Bearer "+b.access

	switch r.Method + " " + r.URL.Path {
	case "POST /api/token/":
		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			reply(w, http.StatusUnauthorized, map[string]any{"error": "Invalid credentials"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"access": b.access, "refresh": b.refresh})

	case "POST /api/token/refresh/":
		reply(w, http.StatusUnauthorized, map[string]any{"detail": "Token is invalid or expired"})

	case "GET /api/user/profile/":
		if !authorized {
			reply(w, http.StatusUnauthorized, map[string]any{"detail": "token_not_valid"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"id": 7, "email": "registrar@uni.example", "first_name": "Ada", "last_name": "Lovelace"})

	case "PATCH /api/user/profile/":
		if !authorized {
			reply(w, http.StatusUnauthorized, map[string]any{"detail": "token_not_valid"})
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.patched = body
		b.mu.Unlock()
		first, _ := body["first_name"].(string)
		reply(w, http.StatusOK, map[string]any{"id": 7, "email": "registrar@uni.example", "first_name": first, "last_name": "Lovelace"})

	case "POST /api/auth/register/employer/", "POST /api/auth/register/institution/":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "taken@acme.example" {
			reply(w, http.StatusBadRequest, map[string]any{"email": []string{"user with this email already exists."}})
			return
		}
		b.mu.Lock()
		b.registered = append(b.registered, body)
		b.mu.Unlock()
		reply(w, http.StatusCreated, map[string]any{"email": body["email"], "first_name": body["first_name"], "user_type": body["user_type"]})

	case "GET /api/certificates/list_all_blockchain":
		if b.cacheable {
			w.Header().Set("Cache-Control", "max-age=60")
		}
		reply(w, http.StatusOK, []map[string]any{
			{"certificate_id": "C1", "student_name": "Alice", "student_id": "1", "course": "Physics", "issue_date": "2024-06-01", "status": "ISSUED"},
			{"certificate_id": "C2", "student_name": "Bob", "student_id": "2", "course": "Biology", "issue_date": "2024-06-02", "status": "REVOKED"},
		})

	case "POST /api/certificates/verify":
		var body struct {
			CertificateID string `json:"certificate_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.CertificateID != "C1" {
			reply(w, http.StatusOK, map[string]any{"is_valid": false, "message": "Certificate not found"})
			return
		}
		reply(w, http.StatusOK, map[string]any{
			"is_valid":    true,
			"certificate": map[string]any{"certificate_id": "C1", "student_name": "Alice", "student_id": "1", "course": "Physics", "institution_name": "State University"},
		})

	case "POST /api/certificates/":
		if !authorized {
			reply(w, http.StatusUnauthorized, map[string]any{"detail": "token_not_valid"})
			return
		}
		var req models.IssueCertificateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.issued = append(b.issued, req)
		b.mu.Unlock()
		reply(w, http.StatusCreated, map[string]any{
			"certificate_id": "0xabc", "student_name": req.StudentName, "student_id": req.StudentID,
			"course": req.Course, "issue_date": req.IssueDate, "status": "ISSUED",
		})

	case "GET /api/institutions":
		reply(w, http.StatusOK, []map[string]any{{"id": 1, "name": "State University", "address": "1 College Rd"}})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *backend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type output struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newGlobals(t *testing.T, b *backend) (*Globals, *output) {
	t.Helper()
	out := &output{}
	return &Globals{
		Server:  b.srv.URL,
		Home:    t.TempDir(),
		Timeout: 5 * time.Second,
		Stdout:  &out.stdout,
		Stderr:  &out.stderr,
	}, out
}

func TestLoginStatusLogout(t *testing.T) {
	b := newBackend(t)
	globals, out := newGlobals(t, b)
	ctx := context.Background()

	err := (&LoginCmd{Email: "registrar@uni.example", Password: "secret"}).Run(ctx, globals)
	require.NoError(t, err)
	assert.Contains(t, out.stdout.String(), "Logged in as Ada Lovelace")

	store, err := credentials.NewFileStore(globals.Home)
	require.NoError(t, err)
	stored, err := store.Get(credentials.AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, b.access, stored)

	out.stdout.Reset()
	require.NoError(t, (&StatusCmd{}).Run(ctx, globals))
	assert.Contains(t, out.stdout.String(), "authenticated")
	assert.NotContains(t, out.stdout.String(), "unauthenticated")
	assert.Contains(t, out.stdout.String(), credentials.Fingerprint(b.access))
	assert.Contains(t, out.stdout.String(), "registrar@uni.example")

	out.stdout.Reset()
	require.NoError(t, (&LogoutCmd{}).Run(ctx, globals))
	assert.Contains(t, out.stdout.String(), "Logged out.")

	out.stdout.Reset()
	require.NoError(t, (&StatusCmd{}).Run(ctx, globals))
	assert.Contains(t, out.stdout.String(), "unauthenticated")

	_, err = store.Get(credentials.AccessTokenKey)
	assert.ErrorIs(t, err, credentials.ErrTokenNotFound)
}

func TestLoginCmd_InvalidCredentials(t *testing.T) {
	b := newBackend(t)
	globals, _ := newGlobals(t, b)

	err := (&LoginCmd{Email: "registrar@uni.example", Password: "wrong"}).Run(context.Background(), globals)
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())
}

func TestWhoamiCmd(t *testing.T) {
	b := newBackend(t)
	globals, out := newGlobals(t, b)
	ctx := context.Background()

	err := (&WhoamiCmd{}).Run(ctx, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	require.NoError(t, (&LoginCmd{Email: "registrar@uni.example", Password: "secret"}).Run(ctx, globals))
	out.stdout.Reset()

	require.NoError(t, (&WhoamiCmd{}).Run(ctx, globals))
	assert.Contains(t, out.stdout.String(), "Ada Lovelace")
	assert.Equal(t, 1, b.count("GET /api/user/profile/"))
}

func TestWhoamiCmd_SessionExpired(t *testing.T) {
	b := newBackend(t)
	globals, out := newGlobals(t, b)

	// A token the backend no longer accepts, with a refresh token it rejects.
	revoked, err := credentials.MintTokenExpiringAt("access", time.Now().Add(time.Hour), &models.User{Email: "registrar@uni.example"})
	require.NoError(t, err)

	store, err := credentials.NewFileStore(globals.Home)
	require.NoError(t, err)
	require.NoError(t, store.Set(credentials.AccessTokenKey, revoked))
	require.NoError(t, store.Set(credentials.RefreshTokenKey, b.refresh))

	err = (&WhoamiCmd{}).Run(context.Background(), globals)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Contains(t, out.stderr.String(), SessionExpiredMessage)
	assert.Equal(t, 1, b.count("POST /api/token/refresh/"))

	_, err = store.Get(credentials.AccessTokenKey)
	assert.ErrorIs(t, err, credentials.ErrTokenNotFound)
}

func TestVerifyCmd(t *testing.T) {
	b := newBackend(t)

	t.Run("valid", func(t *testing.T) {
		globals, out := newGlobals(t, b)

		err := (&VerifyCmd{CertificateID: "C1"}).Run(context.Background(), globals)
		require.NoError(t, err)
		assert.Contains(t, out.stdout.String(), "Certificate Verified")
		assert.Contains(t, out.stdout.String(), "State University")
	})

	t.Run("invalid", func(t *testing.T) {
		globals, out := newGlobals(t, b)

		err := (&VerifyCmd{CertificateID: "nope"}).Run(context.Background(), globals)
		assert.ErrorIs(t, err, ErrVerificationFailed)
		assert.Contains(t, out.stdout.String(), "Verification Failed")
		assert.Contains(t, out.stdout.String(), "Certificate not found")
	})
}

func TestCertificatesListCmd(t *testing.T) {
	b := newBackend(t)

	tests := []struct {
		name     string
		cmd      CertificatesListCmd
		contains []string
		excludes []string
	}{
		{
			name:     "all",
			cmd:      CertificatesListCmd{},
			contains: []string{"C1", "C2", "Total: 2  Issued: 1  Revoked: 1  Draft: 0"},
		},
		{
			name:     "text filter",
			cmd:      CertificatesListCmd{Filter: "ali"},
			contains: []string{"C1", "Total: 1"},
			excludes: []string{"C2"},
		},
		{
			name:     "status filter",
			cmd:      CertificatesListCmd{Status: "revoked"},
			contains: []string{"C2", "Revoked: 1"},
			excludes: []string{"C1"},
		},
		{
			name:     "no match",
			cmd:      CertificatesListCmd{Filter: "chemistry"},
			contains: []string{"No certificates found."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			globals, out := newGlobals(t, b)

			require.NoError(t, tt.cmd.Run(context.Background(), globals))
			for _, s := range tt.contains {
				assert.Contains(t, out.stdout.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out.stdout.String(), s)
			}
		})
	}
}

func TestInstitutionsListCmd(t *testing.T) {
	b := newBackend(t)
	globals, out := newGlobals(t, b)

	require.NoError(t, (&InstitutionsListCmd{}).Run(context.Background(), globals))
	assert.Contains(t, out.stdout.String(), "State University")
	assert.Contains(t, out.stdout.String(), "1 College Rd")
}

func TestIssueCmd_InvalidFormSendsNothing(t *testing.T) {
	b := newBackend(t)
	globals, out := newGlobals(t, b)

	cmd := &IssueCmd{StudentID: "S1", Course: "Physics", Grade: "A", CompletionDate: "2024-01-01"}
	err := cmd.Run(context.Background(), globals)

	var verr *certificates.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, out.stderr.String(), "student_name: Student name is required")
	assert.Equal(t, 0, b.count("POST /api/certificates/"))
}

func TestIssueCmd_RequiresLogin(t *testing.T) {
	b := newBackend(t)
	globals, _ := newGlobals(t, b)

	cmd := &IssueCmd{StudentName: "Alice", StudentID: "S1", Course: "Physics", Grade: "A", CompletionDate: "2024-01-01"}
	err := cmd.Run(context.Background(), globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
	assert.Equal(t, 0, b.count("POST /api/certificates/"))
}

func TestIssueCmd_FromConfigFile(t *testing.T) {
	b := newBackend(t)
	globals, out := newGlobals(t, b)
	ctx := context.Background()

	require.NoError(t, (&LoginCmd{Email: "registrar@uni.example", Password: "secret"}).Run(ctx, globals))
	out.stdout.Reset()

	path := filepath.Join(t.TempDir(), "cert.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
studentName: Alice Smith
studentId: S-100
course: Physics
grade: A
completionDate: "2024-06-01"
metadata:
  honours: true
`), 0600))

	cmd := &IssueCmd{Grade: "B", Config: path}
	require.NoError(t, cmd.Run(ctx, globals))
	assert.Contains(t, out.stdout.String(), "Certificate issued successfully")
	assert.Contains(t, out.stdout.String(), "0xabc")

	require.Len(t, b.issued, 1)
	req := b.issued[0]
	assert.Equal(t, "Alice Smith", req.StudentName)
	assert.Equal(t, "S-100", req.StudentID)
	assert.Equal(t, "A", req.Grade)
	assert.Equal(t, "2024-06-01", req.IssueDate)
	assert.Equal(t, true, req.Metadata["honours"])
}

func TestLoadIssueFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"student_name":"Bob","course":"Biology","institution":3}`), 0600))

	form := certificates.IssueForm{StudentName: "Alice", Grade: "A"}
	require.NoError(t, loadIssueFile(path, &form))

	assert.Equal(t, "Bob", form.StudentName)
	assert.Equal(t, "Biology", form.Course)
	assert.Equal(t, "A", form.Grade)
	require.NotNil(t, form.Institution)
	assert.Equal(t, int64(3), *form.Institution)
}

func TestCertificatesListCmd_KeepsNothingButTheSessionOnDisk(t *testing.T) {
	b := newBackend(t)
	b.cacheable = true
	globals, out := newGlobals(t, b)
	ctx := context.Background()

	require.NoError(t, (&LoginCmd{Email: "registrar@uni.example", Password: "secret"}).Run(ctx, globals))
	require.NoError(t, (&CertificatesListCmd{}).Run(ctx, globals))
	require.NoError(t, (&CertificatesListCmd{}).Run(ctx, globals))
	assert.Contains(t, out.stdout.String(), "C1")

	var files []string
	err := filepath.WalkDir(globals.Home, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(globals.Home, path)
			require.NoError(t, err)
			files = append(files, rel)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"session.json"}, files)
}

func TestPrintCertificates_TruncatesLongCourseByRune(t *testing.T) {
	var out bytes.Buffer
	course := strings.Repeat("é", 40)
	printCertificates(&out, []models.Certificate{{CertificateID: "C1", Course: course, Status: "ISSUED"}})

	assert.True(t, utf8.ValidString(out.String()))
	assert.Contains(t, out.String(), strings.Repeat("é", 27)+"...")
	assert.NotContains(t, out.String(), strings.Repeat("é", 28))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Physics", want: "Physics"},
		{in: strings.Repeat("a", 30), want: strings.Repeat("a", 30)},
		{in: strings.Repeat("a", 31), want: strings.Repeat("a", 27) + "..."},
		{in: "Введение в квантовую механику и теорию поля", want: "Введение в квантовую механи..."},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, 30))
	}
}

func TestRegisterCmd(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	t.Run("employer", func(t *testing.T) {
		globals, out := newGlobals(t, b)

		cmd := &RegisterEmployerCmd{AccountFlags: AccountFlags{Email: "hr@acme.example", Password: "pw-123456", FirstName: "Grace"}}
		require.NoError(t, cmd.Run(ctx, globals))
		assert.Contains(t, out.stdout.String(), "Registered EMPLOYER account for hr@acme.example")

		b.mu.Lock()
		body := b.registered[len(b.registered)-1]
		b.mu.Unlock()
		assert.Equal(t, "pw-123456", body["confirm_password"])
		assert.Equal(t, "EMPLOYER", body["user_type"])
	})

	t.Run("institution", func(t *testing.T) {
		globals, out := newGlobals(t, b)

		cmd := &RegisterInstitutionCmd{
			AccountFlags:       AccountFlags{Email: "registrar@state.example.edu", Password: "pw-123456"},
			InstitutionName:    "State University",
			InstitutionAddress: "1 College Rd",
		}
		require.NoError(t, cmd.Run(ctx, globals))
		assert.Contains(t, out.stdout.String(), "Registered INSTITUTION account")
		assert.Equal(t, 1, b.count("POST /api/auth/register/institution/"))
	})

	t.Run("mismatched confirmation sends nothing", func(t *testing.T) {
		globals, _ := newGlobals(t, b)
		before := b.count("POST /api/auth/register/employer/")

		cmd := &RegisterEmployerCmd{AccountFlags: AccountFlags{Email: "hr@acme.example", Password: "pw-123456", ConfirmPassword: "pw-654321"}}
		err := cmd.Run(ctx, globals)
		require.Error(t, err)
		assert.Equal(t, "passwords do not match", err.Error())
		assert.Equal(t, before, b.count("POST /api/auth/register/employer/"))
	})

	t.Run("backend field errors", func(t *testing.T) {
		globals, _ := newGlobals(t, b)

		cmd := &RegisterEmployerCmd{AccountFlags: AccountFlags{Email: "taken@acme.example", Password: "pw-123456"}}
		err := cmd.Run(ctx, globals)
		require.Error(t, err)
		assert.Equal(t, "email: user with this email already exists.", err.Error())
	})
}

func TestProfileUpdateCmd(t *testing.T) {
	b := newBackend(t)
	globals, out := newGlobals(t, b)
	ctx := context.Background()

	err := (&ProfileUpdateCmd{FirstName: "Augusta"}).Run(ctx, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	require.Error(t, (&ProfileUpdateCmd{}).Run(ctx, globals))

	require.NoError(t, (&LoginCmd{Email: "registrar@uni.example", Password: "secret"}).Run(ctx, globals))
	require.NoError(t, (&ProfileUpdateCmd{FirstName: "Augusta"}).Run(ctx, globals))
	assert.Contains(t, out.stdout.String(), "Profile updated: Augusta Lovelace <registrar@uni.example>")

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, map[string]any{"first_name": "Augusta"}, b.patched)
}

func TestCertificatesListCmd_Watch(t *testing.T) {
	b := newBackend(t)
	globals, out := newGlobals(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	cmd := &CertificatesListCmd{Watch: true, Interval: 20 * time.Millisecond}
	require.NoError(t, cmd.Run(ctx, globals))

	assert.Contains(t, out.stdout.String(), "Watching certificates")
	assert.Contains(t, out.stdout.String(), "updated at")
	assert.GreaterOrEqual(t, b.count("GET /api/certificates/list_all_blockchain"), 2)
}
