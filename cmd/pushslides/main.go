// Command pushslides publishes rendered GC cycle frames to a Google
// Slides presentation, one slide per frame with a caption.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/slides/v1"
)

var (
	presentationID = flag.String("presentation", "", "ID of the presentation to push to")
	captionPrefix  = flag.String("caption", "oolong", "caption prefix for each slide")
)

func main() {
	flag.Parse()
	if *presentationID == "" {
		log.Fatal("missing -presentation")
	}

	svc := slidesClient()
	for i := range flag.NArg() {
		url := flag.Arg(i)
		caption := fmt.Sprintf("%s — %s", *captionPrefix, frameName(url))
		if err := pushFrame(svc, *presentationID, url, caption); err != nil {
			log.Fatal(err)
		}
	}
}

// frameName derives a readable caption from the image URL.
func frameName(url string) string {
	base := path.Base(url)
	return strings.TrimSuffix(base, path.Ext(base))
}

func pushFrame(svc *slides.Service, presentationID, imageURL, caption string) error {
	slideID, err := createSlide(svc, presentationID)
	if err != nil {
		return err
	}
	return fillSlide(svc, presentationID, slideID, imageURL, caption)
}

func createSlide(svc *slides.Service, presentationID string) (string, error) {
	requests := []*slides.Request{{
		CreateSlide: &slides.CreateSlideRequest{
			SlideLayoutReference: &slides.LayoutReference{
				PredefinedLayout: "BLANK",
			},
		},
	}}

	body := &slides.BatchUpdatePresentationRequest{Requests: requests}
	response, err := svc.Presentations.BatchUpdate(presentationID, body).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create slide: %v", err)
	}
	return response.Replies[0].CreateSlide.ObjectId, nil
}

func fillSlide(svc *slides.Service, presentationID, slideID, imageURL, caption string) error {
	emu4M := slides.Dimension{Magnitude: 4000000, Unit: "EMU"}
	emuCaption := slides.Dimension{Magnitude: 400000, Unit: "EMU"}
	captionID := slideID + ".caption"

	requests := []*slides.Request{{
		CreateImage: &slides.CreateImageRequest{
			Url: imageURL,
			ElementProperties: &slides.PageElementProperties{
				PageObjectId: slideID,
				Size: &slides.Size{
					Height: &emu4M,
					Width:  &emu4M,
				},
				Transform: &slides.AffineTransform{
					ScaleX: 1.0,
					ScaleY: 1.0,
					Unit:   "EMU",
				},
			},
		},
	}, {
		CreateShape: &slides.CreateShapeRequest{
			ObjectId:  captionID,
			ShapeType: "TEXT_BOX",
			ElementProperties: &slides.PageElementProperties{
				PageObjectId: slideID,
				Size: &slides.Size{
					Height: &emuCaption,
					Width:  &emu4M,
				},
				Transform: &slides.AffineTransform{
					ScaleX:     1.0,
					ScaleY:     1.0,
					TranslateY: 4100000,
					Unit:       "EMU",
				},
			},
		},
	}, {
		InsertText: &slides.InsertTextRequest{
			ObjectId: captionID,
			Text:     caption,
		},
	}}

	body := &slides.BatchUpdatePresentationRequest{Requests: requests}
	if _, err := svc.Presentations.BatchUpdate(presentationID, body).Do(); err != nil {
		return fmt.Errorf("failed to fill slide: %v", err)
	}
	return nil
}

func slidesClient() *slides.Service {
	ctx := context.Background()
	// Uses env GOOGLE_APPLICATION_CREDENTIALS.
	client, err := google.DefaultClient(ctx,
		drive.DriveScope,
		slides.PresentationsScope)
	if err != nil {
		log.Fatalf("error creating Google client: %v", err)
	}
	svc, err := slides.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		log.Fatalf("error creating Slides client: %v", err)
	}
	return svc
}
