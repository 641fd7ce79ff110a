package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"studentreg/internal/avatar"
	"studentreg/internal/client"
	"studentreg/internal/config"
	"studentreg/internal/faceclient"
	"studentreg/internal/form"
)

// register is the terminal front end: it runs the same validation and
// avatar pipeline a browser form would, then submits over the API.
func main() {
	cfg := config.Load()

	apiURL := flag.String("api", "http://localhost:"+cfg.HTTPPort, "registration API base URL")
	first := flag.String("first", "", "first name")
	middle := flag.String("middle", "", "middle name (optional)")
	last := flag.String("last", "", "last name")
	dob := flag.String("dob", "", "date of birth, YYYY-MM-DD")
	phone := flag.String("phone", "", "phone number")
	course := flag.String("course", "", "desired course")
	avatarPath := flag.String("avatar", "", "path to a photo for the avatar (optional)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// With a pipeline configured the form requires an accepted avatar,
	// so it is only wired up when a photo was offered.
	var pipe *avatar.Pipeline
	var face *faceclient.Client
	if *avatarPath != "" {
		face = faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
		pipe = avatar.NewPipeline(
			&avatar.RemoteDetector{Client: face},
			avatar.NewGenerator(cfg.AvatarServiceURL),
			avatar.NewFetcher(),
		)
	}

	repo := client.New(*apiURL)
	ctrl := form.New(repo, pipe)

	ctrl.SetField("first_name", *first)
	ctrl.SetField("middle_name", *middle)
	ctrl.SetField("last_name", *last)
	ctrl.SetField("date_of_birth", *dob)
	ctrl.SetField("phone_number", *phone)
	ctrl.SetField("desired_course", *course)

	if *avatarPath != "" {
		if !cfg.FaceSkip && !face.WaitReady(ctx) {
			log.Println("face service not ready, detection may fall back to heuristics")
		}
		data, err := os.ReadFile(*avatarPath)
		if err != nil {
			log.Fatalf("read avatar file: %v", err)
		}
		up := avatar.Upload{Data: data, ContentType: http.DetectContentType(data)}
		if err := ctrl.AttachAvatar(ctx, up); err != nil {
			if avatar.IsRejection(err) {
				log.Fatalf("avatar rejected: %v", err)
			}
			log.Printf("avatar processing degraded: %v", err)
		}
		if w := ctrl.AvatarWarning(); w != "" {
			log.Printf("avatar warning: %s", w)
		}
	}

	switch ctrl.Submit(ctx) {
	case form.StateSuccess:
		fmt.Println("Student registered successfully")
	case form.StateInvalid:
		for _, fe := range ctrl.Errors() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", fe.Field, fe.Message)
		}
		os.Exit(1)
	case form.StateFailure:
		fmt.Fprintln(os.Stderr, ctrl.FailureMessage())
		os.Exit(1)
	}
}
