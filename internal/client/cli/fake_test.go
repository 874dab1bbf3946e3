package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/dmitrijs2005/conduit/internal/client/client"
	"github.com/dmitrijs2005/conduit/internal/client/config"
)

type fakeClient struct {
	token string

	user   *client.User
	err    error
	upload *client.AvatarUpload

	gotEmail       string
	gotUsername    string
	gotPassword    string
	gotUpdate      client.Update
	gotContentType string
	closed         bool
}

func (f *fakeClient) Close() error { f.closed = true; return nil }

func (f *fakeClient) Register(_ context.Context, email, username string, password []byte) (*client.User, error) {
	f.gotEmail, f.gotUsername, f.gotPassword = email, username, string(password)
	if f.err != nil {
		return nil, f.err
	}
	f.token = "tok"
	return f.user, nil
}

func (f *fakeClient) Login(_ context.Context, email string, password []byte) (*client.User, error) {
	f.gotEmail, f.gotPassword = email, string(password)
	if f.err != nil {
		return nil, f.err
	}
	f.token = "tok"
	return f.user, nil
}

func (f *fakeClient) CurrentUser(context.Context) (*client.User, error) {
	if f.token == "" {
		return nil, client.ErrNotLoggedIn
	}
	return f.user, f.err
}

func (f *fakeClient) UpdateUser(_ context.Context, u client.Update) (*client.User, error) {
	if f.token == "" {
		return nil, client.ErrNotLoggedIn
	}
	f.gotUpdate = u
	if f.err != nil {
		return nil, f.err
	}
	out := *f.user
	if u.Bio != nil {
		out.Bio = u.Bio
	}
	if u.Image != nil {
		out.Image = u.Image
	}
	return &out, nil
}

func (f *fakeClient) AvatarUpload(_ context.Context, contentType string) (*client.AvatarUpload, error) {
	if f.token == "" {
		return nil, client.ErrNotLoggedIn
	}
	f.gotContentType = contentType
	return f.upload, f.err
}

func (f *fakeClient) LoggedIn() bool { return f.token != "" }
func (f *fakeClient) Logout()        { f.token = "" }

func newTestApp(fc *fakeClient) (*App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &App{
		config: &config.Config{},
		client: fc,
		reader: bufio.NewReader(strings.NewReader("")),
		out:    out,
	}, out
}

func stubInputs(texts []string, password string) func() {
	origText, origPw := getSimpleText, getPassword
	i := 0
	getSimpleText = func(*bufio.Reader, string, io.Writer) (string, error) {
		s := texts[i]
		i++
		return s, nil
	}
	getPassword = func(io.Writer) ([]byte, error) { return []byte(password), nil }
	return func() { getSimpleText, getPassword = origText, origPw }
}
