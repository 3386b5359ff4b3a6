package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/picshare/internal/client/client"
	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/filex"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errPasswordMismatch = errors.New("passwords do not match")

func (a *App) requireLogin() error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}
	return nil
}

// Register asks for a username and the password twice. The server checks the
// confirmation as well; the prompt only saves a round trip.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.out, "Confirm password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if err := a.api.Register(ctx, userName, string(password), string(confirm)); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Success!")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.api.Login(ctx, userName, string(password)); err != nil {
		return err
	}

	a.userName = userName
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Logout forgets the local user even when the server call fails; the client
// drops its token in that case too.
func (a *App) Logout(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	err := a.api.Logout(ctx)
	a.userName = ""
	return err
}

func (a *App) ChangePassword(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	oldPassword, err := getPassword(a.out, "Current password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldPassword)

	newPassword, err := getPassword(a.out, "New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPassword)

	confirm, err := getPassword(a.out, "Confirm new password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(newPassword) != string(confirm) {
		return errPasswordMismatch
	}

	if err := a.api.ChangePassword(ctx, string(oldPassword), string(newPassword)); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Password changed")
	return nil
}

func (a *App) Rename(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	newName, err := getSimpleText(a.reader, "Enter new username", a.out)
	if err != nil {
		return err
	}

	if err := a.api.Rename(ctx, newName); err != nil {
		return err
	}

	a.userName = newName
	fmt.Fprintf(a.out, "Renamed to %s\n", newName)
	return nil
}

// Upload sends the file at args[0]. The extension is taken from the file
// name; visibility defaults to private.
func (a *App) Upload(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	path := args[0]
	visibility := "private"
	if len(args) > 1 {
		visibility = args[1]
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")

	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	handle, err := a.api.Upload(ctx, blob, ext, visibility)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, handle)
	return nil
}

func (a *App) List(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	items, err := a.api.ListPublic(ctx)
	if err != nil {
		return err
	}
	a.printItems(items)
	return nil
}

func (a *App) Mine(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	items, err := a.api.ListMine(ctx)
	if err != nil {
		return err
	}
	a.printItems(items)
	return nil
}

func (a *App) printItems(items []client.MediaItem) {
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No media")
		return
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLE\tOWNER\tVISIBILITY\tCREATED")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Handle, it.Owner, it.Visibility, it.CreatedAt.Local().Format(time.DateTime))
	}
	w.Flush()
}

// Get downloads args[0] into the configured download directory and prints
// the resulting path.
func (a *App) Get(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	handle := args[0]
	blob, err := a.api.Fetch(ctx, handle)
	if err != nil {
		return err
	}

	dir, err := filex.EnsureDir(a.config.DownloadDir, 0o755)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, filepath.Base(handle))
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return err
	}

	fmt.Fprintln(a.out, path)
	return nil
}
