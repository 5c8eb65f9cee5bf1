package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/studymaterials/backend/internal/client"
	"github.com/studymaterials/backend/internal/models"
	"github.com/studymaterials/backend/internal/services"
	"github.com/studymaterials/backend/internal/youtube"
)

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}

	fmt.Fprintf(a.out, "signed in as %s until %s\n", session.Email, session.ExpiresAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(a.out, "export STUDYCTL_TOKEN=%s\n", session.AccessToken)
	return nil
}

func (a *app) forgotPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: studyctl forgot-password <email>")
	}

	if err := a.client.RequestPasswordReset(ctx, args[0]); err != nil {
		return fmt.Errorf("password reset request failed: %w", err)
	}

	fmt.Fprintln(a.out, "if the account exists, a reset code has been emailed")
	return nil
}

func (a *app) resetPassword(ctx context.Context, args []string) error {
	fs := a.newFlagSet("reset-password")
	token := fs.String("token", "", "reset code from the email")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" || *password == "" {
		return errors.New("usage: studyctl reset-password -token T -password P")
	}

	if err := a.client.ConfirmPasswordReset(ctx, *token, *password); err != nil {
		return fmt.Errorf("password reset failed: %w", err)
	}

	fmt.Fprintln(a.out, "password updated, sign in with studyctl login")
	return nil
}

func (a *app) classes(args []string) error {
	return a.classesTo(a.out, args)
}

func (a *app) classesTo(w io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: studyctl classes <category>")
	}
	category := models.Category(strings.ToLower(args[0]))
	if !category.IsValid() {
		return fmt.Errorf("unknown category %q", args[0])
	}

	options := models.ClassOptions(category)
	if len(options) == 0 {
		fmt.Fprintf(w, "%s has no class levels\n", category.Title())
		return nil
	}

	levels := make([]string, len(options))
	for i, c := range options {
		levels[i] = strconv.Itoa(c)
	}
	fmt.Fprintf(w, "%s: %s\n", category.Title(), strings.Join(levels, ", "))
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := a.newFlagSet("list")
	category := fs.String("category", "", "category")
	kind := fs.String("type", "material", "material type")
	class := fs.String("class", "", "class level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := services.ParseFilterKey(*category, *kind, *class)
	if err != nil {
		return err
	}

	query := services.NewMaterialQuery(a.client, a.logger)
	if err := query.Fetch(ctx, key); err != nil {
		return err
	}

	printGroups(a.out, query.Materials())
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	id, err := parseIDArg(args)
	if err != nil {
		return err
	}

	material, err := a.client.GetRecord(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "#%d %s\n", material.ID, material.Name)
	fmt.Fprintf(a.out, "  category: %s\n  type:     %s\n  file:     %s\n", material.Category, material.Kind, material.FileType)
	fmt.Fprintf(a.out, "  chapter:  %s\n", services.ChapterTitle(*material))
	if material.Class != nil {
		fmt.Fprintf(a.out, "  class:    %d\n", *material.Class)
	}
	if material.PageCount != nil {
		fmt.Fprintf(a.out, "  pages:    %d\n", *material.PageCount)
	}
	fmt.Fprintf(a.out, "  url:      %s\n", viewURL(*material))
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	id, err := parseIDArg(args)
	if err != nil {
		return err
	}

	session, err := a.session(ctx)
	if err != nil {
		return err
	}

	affected, err := a.client.DeleteRecord(ctx, session, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		fmt.Fprintf(a.out, "material %d was already gone\n", id)
		return nil
	}
	fmt.Fprintf(a.out, "deleted material %d\n", id)
	return nil
}

func (a *app) upload(ctx context.Context, args []string) error {
	fs := a.newFlagSet("upload")
	var req models.CreateMaterialRequest
	fs.StringVar(&req.Name, "name", "", "material name")
	fs.StringVar(&req.Category, "category", "", "category")
	fs.StringVar(&req.Kind, "type", "material", "material type")
	fs.StringVar(&req.FileType, "file-type", "", "img, video or pdf")
	fs.StringVar(&req.Chapter, "chapter", "", "chapter number")
	fs.StringVar(&req.Class, "class", "", "class level")
	fs.StringVar(&req.YouTubeURL, "youtube", "", "YouTube URL for videos")
	path := fs.String("file", "", "image or PDF to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.session(ctx)
	if err != nil {
		return err
	}

	var file *services.UploadFile
	if *path != "" {
		f, err := os.Open(*path)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		file = &services.UploadFile{Reader: f, Filename: filepath.Base(*path)}
	}

	material, err := a.client.Upload(ctx, session, req, file)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "uploaded #%d %s\n", material.ID, material.Name)
	return nil
}

// session resolves the configured token, so an expired token fails before anything is sent
func (a *app) session(ctx context.Context) (*models.Session, error) {
	if a.token == "" {
		return nil, errors.New("not signed in: run studyctl login and export STUDYCTL_TOKEN")
	}
	session, err := a.client.Session(ctx, a.token)
	if client.IsUnauthorized(err) {
		return nil, errors.New("session expired: sign in again")
	}
	return session, err
}

func printGroups(w io.Writer, materials []models.Material) {
	if len(materials) == 0 {
		fmt.Fprintln(w, "no materials")
		return
	}
	for _, group := range services.GroupByChapter(materials) {
		fmt.Fprintln(w, group.Title)
		for _, m := range group.Materials {
			fmt.Fprintf(w, "  #%-5d %-5s %s\n", m.ID, m.FileType, m.Name)
		}
	}
}

// viewURL returns the embeddable player for videos and the file URL otherwise
func viewURL(m models.Material) string {
	if m.FileType == models.FileTypeVideo {
		if id, ok := youtube.VideoID(m.FileURL); ok {
			return youtube.EmbedURL(id)
		}
	}
	return m.FileURL
}

func parseIDArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected exactly one material id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid material id %q", args[0])
	}
	return id, nil
}
