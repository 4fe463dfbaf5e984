// Command chatclient is a terminal client for the gatherly WebSocket API.
//
//	chatclient -url ws://localhost:5000/ws -token $TOKEN -room event-42
//	chatclient -mint-secret devsecret -user alice -role creator -room event-42
//
// Lines typed on stdin are sent as text messages. Commands:
//
//	/image <url>      send an image message
//	/pin <id>         pin a message for everyone (room creator/admin)
//	/unpin <id>       clear a global pin
//	/bookmark <id>    toggle a personal pin
//	/history [before] load older messages (RFC3339 cursor)
//	/unread           show unread counts
//	/join <room>      switch rooms
//	/quit
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg/logger"
	"github.com/akinalp/gatherly/services"
	"github.com/akinalp/gatherly/ws"
)

const (
	writeTimeout      = 10 * time.Second
	heartbeatInterval = 30 * time.Second
)

// frame is a server frame with the payload left raw until the op is known.
type frame struct {
	Op    string          `json:"op"`
	Data  json.RawMessage `json:"d"`
	Seq   int64           `json:"seq"`
	Nonce string          `json:"nonce"`
}

type client struct {
	conn  *websocket.Conn
	room  string
	nonce int
	log   zerolog.Logger
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		serverURL  = flag.String("url", "ws://localhost:5000/ws", "WebSocket endpoint")
		token      = flag.String("token", "", "JWT issued by the auth service")
		room       = flag.String("room", "", "room (event) id to join")
		mintSecret = flag.String("mint-secret", "", "mint a development token with this JWT secret instead of -token")
		user       = flag.String("user", "dev", "user id for a minted token")
		role       = flag.String("role", "user", "role for a minted token: user, creator or admin")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.Component(logger.New("development", level), "chatclient")

	if *mintSecret != "" {
		minted, err := services.NewAuthService(*mintSecret).IssueToken(models.Identity{
			UserID:   *user,
			Username: *user,
			Role:     models.Role(*role),
		}, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
		*token = minted
	}
	if *token == "" {
		return errors.New("-token or -mint-secret is required")
	}

	u, err := url.Parse(*serverURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("token", *token)
	u.RawQuery = q.Encode()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, u.String(), nil)
	dialCancel()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	conn.SetReadLimit(1 << 20)

	c := &client{conn: conn, log: log}

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(ctx) }()

	if *room != "" {
		if err := c.join(ctx, *room); err != nil {
			return err
		}
	}

	fmt.Println("Connected. Type messages to chat, /quit to exit.")

	inputCh := make(chan string)
	go readInput(inputCh)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		case <-heartbeat.C:
			if err := c.write(ctx, ws.OpHeartbeat, nil); err != nil {
				return err
			}
		case line, ok := <-inputCh:
			if !ok {
				return nil
			}
			quit, err := c.handleLine(ctx, strings.TrimSpace(line))
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

func (c *client) handleLine(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, c.send(ctx, models.MessageBody{Kind: models.BodyText, Text: line})
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit":
		return true, nil
	case "/join":
		return false, c.join(ctx, arg)
	case "/image":
		return false, c.send(ctx, models.MessageBody{Kind: models.BodyImage, URL: arg})
	case "/pin":
		return false, c.write(ctx, ws.OpPinGlobal, ws.MessageRef{MessageID: arg})
	case "/unpin":
		return false, c.write(ctx, ws.OpUnpinGlobal, ws.MessageRef{MessageID: arg})
	case "/bookmark":
		return false, c.write(ctx, ws.OpPinPersonal, ws.MessageRef{MessageID: arg})
	case "/unread":
		return false, c.write(ctx, ws.OpUnreadCounts, nil)
	case "/history":
		req := ws.HistoryData{RoomID: c.room}
		if arg != "" {
			before, err := time.Parse(time.RFC3339Nano, arg)
			if err != nil {
				fmt.Println("usage: /history [RFC3339 timestamp]")
				return false, nil
			}
			req.Before = &before
		}
		return false, c.write(ctx, ws.OpHistory, req)
	default:
		fmt.Printf("unknown command %s\n", cmd)
		return false, nil
	}
}

func (c *client) join(ctx context.Context, room string) error {
	if room == "" {
		fmt.Println("usage: /join <room>")
		return nil
	}
	c.room = room
	return c.write(ctx, ws.OpJoin, ws.RoomData{RoomID: room})
}

func (c *client) send(ctx context.Context, body models.MessageBody) error {
	if c.room == "" {
		fmt.Println("join a room first: /join <room>")
		return nil
	}
	return c.write(ctx, ws.OpSend, ws.SendData{RoomID: c.room, Body: body})
}

func (c *client) write(ctx context.Context, op string, data any) error {
	c.nonce++
	ev := ws.Event{Op: op, Data: data, Nonce: strconv.Itoa(c.nonce)}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, c.conn, ev); err != nil {
		return fmt.Errorf("write %s: %w", op, err)
	}
	c.log.Debug().Str("op", op).Str("nonce", ev.Nonce).Msg("sent")
	return nil
}

func (c *client) readLoop(ctx context.Context) error {
	for {
		var f frame
		if err := wsjson.Read(ctx, c.conn, &f); err != nil {
			return err
		}
		c.log.Debug().Str("op", f.Op).Int64("seq", f.Seq).Str("nonce", f.Nonce).Msg("received")
		printFrame(f)
	}
}

func printFrame(f frame) {
	switch f.Op {
	case ws.OpReady:
		var d ws.ReadyData
		if json.Unmarshal(f.Data, &d) == nil {
			fmt.Printf("*** signed in as %s (%s), session %s\n", d.User.UserID, d.User.Role, d.SessionID)
		}
	case ws.OpJoined:
		var d ws.JoinedData
		if json.Unmarshal(f.Data, &d) != nil {
			return
		}
		fmt.Printf("*** joined %s, online: %s\n", d.RoomID, strings.Join(d.Online, ", "))
		for _, p := range d.Pins {
			fmt.Printf("📌 %s\n", formatMessage(p))
		}
		if d.History != nil {
			printPage(d.History)
		}
	case ws.OpHistoryPage:
		var page models.MessagePage
		if json.Unmarshal(f.Data, &page) == nil {
			printPage(&page)
		}
	case ws.OpMessageCreated:
		var m models.Message
		if json.Unmarshal(f.Data, &m) == nil {
			fmt.Println(formatMessage(m))
		}
	case ws.OpUserJoined, ws.OpUserLeft:
		var p models.Presence
		if json.Unmarshal(f.Data, &p) == nil {
			fmt.Printf("*** %s\n", p.Text)
		}
	case ws.OpTypingChanged:
		var t models.TypingChange
		if json.Unmarshal(f.Data, &t) == nil && t.IsTyping {
			fmt.Printf("... %s is typing\n", t.UserID)
		}
	case ws.OpPinChanged:
		var pc models.PinChange
		if json.Unmarshal(f.Data, &pc) != nil || pc.Message == nil {
			return
		}
		if pc.Message.GlobalPinned {
			fmt.Printf("📌 pinned: %s\n", formatMessage(*pc.Message))
		} else {
			fmt.Printf("*** unpinned %s\n", pc.Message.ID)
		}
	case ws.OpPinPersonalAck:
		var r models.PinToggleResult
		if json.Unmarshal(f.Data, &r) == nil {
			fmt.Printf("*** bookmark %s: %t\n", r.MessageID, r.Pinned)
		}
	case ws.OpUnreadCountsAck:
		var counts []models.UnreadInfo
		if json.Unmarshal(f.Data, &counts) == nil {
			for _, u := range counts {
				fmt.Printf("*** %s: %d unread\n", u.RoomID, u.UnreadCount)
			}
		}
	case ws.OpError:
		var e ws.ErrorData
		if json.Unmarshal(f.Data, &e) == nil {
			fmt.Printf("!!! %s: %s\n", e.Code, e.Message)
		}
	case ws.OpSent, ws.OpHeartbeatAck, ws.OpLeft:
	default:
		fmt.Printf("??? %s %s\n", f.Op, string(f.Data))
	}
}

func printPage(page *models.MessagePage) {
	if page.HasMore && len(page.Messages) > 0 {
		fmt.Printf("--- older messages: /history %s\n", page.Messages[0].CreatedAt.Format(time.RFC3339Nano))
	}
	for _, m := range page.Messages {
		fmt.Println(formatMessage(m))
	}
}

func formatMessage(m models.Message) string {
	sender := "system"
	if m.SenderID != nil {
		sender = *m.SenderID
	}
	content := m.Body.Text
	if m.Body.Kind == models.BodyImage {
		content = "[image] " + m.Body.URL
	}
	return fmt.Sprintf("[%s] %s: %s  (%s)", m.CreatedAt.Local().Format("15:04:05"), sender, content, m.ID)
}

func readInput(dst chan<- string) {
	defer close(dst)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		dst <- scanner.Text()
	}
}
