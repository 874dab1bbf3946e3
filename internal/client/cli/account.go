package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/dmitrijs2005/conduit/internal/client/client"
	"github.com/dmitrijs2005/conduit/internal/netx"
)

// uploadFn is a test seam for the presigned upload.
var uploadFn = netx.UploadToPresignedURL

// WhoAmI fetches and prints the caller's account.
func (a *App) WhoAmI(ctx context.Context) error {
	ctx, cancel := a.callContext(ctx)
	defer cancel()

	u, err := a.client.CurrentUser(ctx)
	if err != nil {
		return err
	}
	a.user = u
	a.printUser(u)
	return nil
}

// SetBio replaces the caller's bio. An empty text clears it.
func (a *App) SetBio(ctx context.Context, text string) error {
	ctx, cancel := a.callContext(ctx)
	defer cancel()

	u, err := a.client.UpdateUser(ctx, client.Update{Bio: &text})
	if err != nil {
		return err
	}
	a.user = u
	fmt.Fprintln(a.out, "Bio updated")
	return nil
}

// Avatar uploads the image at path to object storage and sets it as the
// caller's profile image.
func (a *App) Avatar(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	contentType := http.DetectContentType(data)

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	up, err := a.client.AvatarUpload(ctx, contentType)
	if err != nil {
		return err
	}
	if err := uploadFn(ctx, up.URL, contentType, data); err != nil {
		return err
	}

	u, err := a.client.UpdateUser(ctx, client.Update{Image: &up.Image})
	if err != nil {
		return err
	}
	a.user = u
	fmt.Fprintf(a.out, "Avatar set to %s\n", up.Image)
	return nil
}
