package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/paperforge/paperforge/internal/agent"
	"github.com/paperforge/paperforge/internal/chatlog"
	"github.com/paperforge/paperforge/internal/store"
	"github.com/paperforge/paperforge/internal/stream"
	"github.com/paperforge/paperforge/internal/tasks"
	"github.com/paperforge/paperforge/internal/workspace"
	"github.com/paperforge/paperforge/pkg/protocol"
)

const (
	authTimeout   = 10 * time.Second
	writeTimeout  = 10 * time.Second
	sendQueueSize = 512

	// taskBusyMessage rejects a problem frame while a task is still
	// running for the work.
	taskBusyMessage = "当前有任务正在执行，请等待完成"
)

// Client is one authenticated WebSocket connection bound to a single work.
// It implements tasks.Transport: sends are queued on a buffered channel and
// never block the task; a slow or dead connection drops frames and relies
// on the task's replay buffer after reconnect.
type Client struct {
	conn   *websocket.Conn
	server *Server
	workID string
	userID string
	work   *store.Work

	send    chan protocol.ServerFrame
	limiter *rate.Limiter

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, server *Server, workID string) *Client {
	var limiter *rate.Limiter
	if rpm := server.cfg.Gateway.RateLimitRPM; rpm > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 5)
	}
	return &Client{
		conn:    conn,
		server:  server,
		workID:  workID,
		send:    make(chan protocol.ServerFrame, sendQueueSize),
		limiter: limiter,
		done:    make(chan struct{}),
	}
}

// Close shuts down the connection and the writer goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Run drives the connection: auth handshake, reconnect replay, then the
// read loop. It returns when the connection drops. A running task is
// detached, never cancelled, so it keeps buffering for the next connection.
func (c *Client) Run() {
	if !c.authenticate() {
		return
	}
	go c.writePump()

	c.enqueue(protocol.ServerFrame{Type: protocol.FrameAuthSuccess})
	c.replayRunningTask()
	c.readLoop()

	if t, ok := c.server.super.Get(c.workID); ok {
		t.Detach(c)
	}
}

// authenticate reads the first frame, which must carry a token owning this
// work. Failures send an error frame and close.
func (c *Client) authenticate() bool {
	c.conn.SetReadDeadline(time.Now().Add(authTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return false
	}
	var frame protocol.ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Token == "" {
		c.writeDirect(protocol.Error("认证失败：缺少 token"))
		return false
	}

	userID, err := c.server.st.ValidateToken(frame.Token)
	if err != nil {
		c.writeDirect(protocol.Error("认证失败：token 无效或已过期"))
		return false
	}
	owns, err := c.server.st.OwnsWork(userID, c.workID)
	if err != nil || !owns {
		c.writeDirect(protocol.Error("认证失败：无权访问该论文"))
		return false
	}
	work, err := c.server.st.GetWork(c.workID)
	if err != nil {
		c.writeDirect(protocol.Error("认证失败：论文不存在"))
		return false
	}

	c.userID = userID
	c.work = work
	slog.Info("client authenticated", "work_id", c.workID, "user_id", userID)
	return true
}

// replayRunningTask attaches to a non-terminal task: the client gets a
// reconnect frame, the full replayed buffer, then reconnect_complete. The
// completion marker is enqueued inside the attach lock so a live frame
// from the running task can never precede it. The newest connection
// becomes the live transport.
func (c *Client) replayRunningTask() {
	t, ok := c.server.super.Running(c.workID)
	if !ok {
		return
	}
	c.enqueue(protocol.ServerFrame{Type: protocol.FrameReconnect, TaskID: t.ID})
	t.AttachNotify(c, func() {
		c.enqueue(protocol.ServerFrame{Type: protocol.FrameReconnectComplete, TaskID: t.ID})
	})
	slog.Info("client reattached to task", "work_id", c.workID, "task_id", t.ID)
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read error", "work_id", c.workID, "error", err)
			}
			return
		}
		var frame protocol.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.enqueue(protocol.Error("无法解析消息"))
			continue
		}

		switch {
		case frame.Type == protocol.FramePing:
			c.enqueue(protocol.ServerFrame{Type: protocol.FramePong})
		case frame.Problem != "":
			c.handleProblem(frame.Problem)
		default:
			// token re-sends and empty frames are ignored after auth
		}
	}
}

// handleProblem starts a new task turn for the work. A still-running task
// rejects the frame; the client must wait or reconnect.
func (c *Client) handleProblem(question string) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.enqueue(protocol.Error("请求过于频繁，请稍后再试"))
		return
	}

	t, err := c.server.super.Create(c.workID, c.userID, question)
	if err != nil {
		c.enqueue(protocol.Error(taskBusyMessage))
		return
	}
	t.Attach(c)
	c.enqueue(protocol.ServerFrame{Type: protocol.FrameStart, TaskID: t.ID})

	go c.runTask(t, question)
}

// runTask executes one planner turn to completion. It runs detached from
// the connection; disconnects leave it running against the replay buffer.
func (c *Client) runTask(t *tasks.Task, question string) {
	ctx, err := t.Start(context.Background(), c.server.super.Timeout())
	if err != nil {
		slog.Error("task start failed", "task_id", t.ID, "error", err)
		return
	}

	if err := c.executeTurn(ctx, t, question); err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			t.Fail("任务超时")
			t.EmitContent("\n(任务超时，已终止)")
		case errors.Is(err, context.Canceled):
			t.Cancel()
		default:
			t.Fail(err.Error())
			slog.Error("task failed", "task_id", t.ID, "work_id", t.WorkID, "error", err)
		}
		c.enqueue(protocol.ServerFrame{Type: protocol.FrameError, TaskID: t.ID, Message: t.Error()})
		return
	}

	t.Complete()
	c.enqueue(protocol.ServerFrame{Type: protocol.FrameComplete, TaskID: t.ID})
	slog.Info("task completed", "task_id", t.ID, "work_id", t.WorkID)
}

// executeTurn wires workspace, chat log, and sink for one planner run.
func (c *Client) executeTurn(ctx context.Context, t *tasks.Task, question string) error {
	ws, err := workspace.Open(c.server.cfg.WorkspacesDir(), c.workID)
	if err != nil {
		return err
	}
	log := chatlog.Open(ws.Root(), c.workID)
	sink := stream.NewPersistentSink(log, t)

	templateFile := ""
	if c.work.TemplateID != "" {
		if path, ok := c.server.templates.Lookup(c.work.TemplateID); ok {
			templateFile = path
		} else {
			slog.Warn("template not found, continuing without seed",
				"work_id", c.workID, "template_id", c.work.TemplateID)
		}
	}

	planner, err := agent.NewPlanner(c.server.st, c.server.cfg, c.work, ws, log, sink, templateFile)
	if err != nil {
		return err
	}
	return planner.Run(ctx, question)
}

// SendContent implements tasks.Transport.
func (c *Client) SendContent(text string) {
	c.enqueue(protocol.Content(text))
}

// SendBlock implements tasks.Transport.
func (c *Client) SendBlock(typ string, data interface{}) {
	c.enqueue(protocol.JSONBlock(typ, data))
}

// enqueue queues a frame without blocking. Frames are dropped when the
// queue is full; the task replay buffer covers the gap on reconnect.
func (c *Client) enqueue(frame protocol.ServerFrame) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		slog.Warn("send queue full, dropping frame", "work_id", c.workID, "type", frame.Type)
	}
}

// writeDirect writes one frame synchronously, before the writer goroutine
// exists. Used during the auth handshake only.
func (c *Client) writeDirect(frame protocol.ServerFrame) {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteJSON(frame)
}

// writePump owns all writes to the connection after auth: queued frames
// plus periodic heartbeat pings.
func (c *Client) writePump() {
	interval := time.Duration(c.server.cfg.Gateway.PingIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
