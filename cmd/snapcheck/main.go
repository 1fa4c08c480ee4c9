package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/ChessSnap-PDF/internal/flow"
	"github.com/park285/ChessSnap-PDF/internal/msgcat"
	"github.com/park285/ChessSnap-PDF/internal/session"
	"github.com/park285/ChessSnap-PDF/internal/snapfast"
)

// snapcheck drives the full flow against a running service: upload a PDF,
// click a point on one page, print the detected position, optionally open
// the game link in the browser.
func main() {
	var (
		pdfPath = flag.String("pdf", "", "path to the PDF to upload (required)")
		page    = flag.Int("page", 0, "preview index to click")
		clickX  = flag.Float64("x", 0, "click x in displayed pixels")
		clickY  = flag.Float64("y", 0, "click y in displayed pixels")
		dispW   = flag.Float64("dispw", 0, "displayed preview width")
		dispH   = flag.Float64("disph", 0, "displayed preview height")
		site    = flag.String("site", "", "open the game on this site (lichess or chess.com)")
		noOpen  = flag.Bool("no-open", false, "print the redirect url instead of opening it")
	)
	flag.Parse()

	baseURL := os.Getenv("SNAP_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	eventsURL := os.Getenv("SNAP_EVENTS_URL")

	if *pdfPath == "" {
		log.Fatal("-pdf is required")
	}
	pdf, err := os.ReadFile(*pdfPath)
	if err != nil {
		log.Fatalf("read pdf: %v", err)
	}

	sessionID := os.Getenv("X_SESSION_ID")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	headers := func() map[string]string {
		return map[string]string{"X-Session-Id": sessionID}
	}

	client := snapfast.NewClient(baseURL,
		snapfast.WithHeaderProvider(headers),
		snapfast.WithTimeout(60*time.Second),
	)

	cat, err := msgcat.New("")
	if err != nil {
		log.Fatalf("message catalog: %v", err)
	}

	opener := browser.OpenURL
	if *noOpen {
		opener = func(url string) error {
			fmt.Printf("redirect: %s\n", url)
			return nil
		}
	}

	pipeline, err := flow.NewPipeline(client, cat, opener)
	if err != nil {
		log.Fatalf("pipeline init: %v", err)
	}
	pipeline.Machine().Watch(func(e session.Event) {
		log.Printf("state: %s", e.State)
	})

	if eventsURL != "" {
		go watchEvents(eventsURL, sessionID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := pipeline.Upload(ctx, *pdfPath, pdf); err != nil {
		log.Fatalf("upload failed: %s", pipeline.ErrorMessage())
	}
	entries := pipeline.Registry().Entries()
	log.Printf("previews: %d page(s)", len(entries))
	for _, e := range entries {
		log.Printf("  page %d: %dx%d", e.Page, e.OriginalWidth, e.OriginalHeight)
	}

	if *dispW <= 0 || *dispH <= 0 {
		// Without displayed dimensions the click cannot be mapped; stop
		// after the upload check.
		return
	}

	gen := pipeline.Registry().Generation()
	if !pipeline.AnalyzeClick(gen, *page, *clickX, *clickY, *dispW, *dispH) {
		log.Fatalf("click dropped (page index %d of %d)", *page, len(entries))
	}
	if msg := pipeline.ErrorMessage(); msg != "" {
		log.Fatalf("analysis failed: %s", msg)
	}
	enc, ok := pipeline.Machine().LaunchEncoding()
	if !ok {
		log.Fatal("no position detected")
	}
	fmt.Printf("fen: %s\n", enc)

	if *site != "" {
		if err := pipeline.StartGame(ctx, *site); err != nil {
			log.Fatalf("start game failed: %s", pipeline.ErrorMessage())
		}
	}
}

type eventPayload struct {
	Kind   string    `json:"kind"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

func watchEvents(eventsURL, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, _, err := websocket.Dial(ctx, eventsURL+"?session="+sessionID, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	cancel()
	if err != nil {
		log.Printf("events connect error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for {
		var evt eventPayload
		if err := wsjson.Read(context.Background(), conn, &evt); err != nil {
			return
		}
		log.Printf("event: %s %s", evt.Kind, evt.Detail)
	}
}
