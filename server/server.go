// WebSocket快照服务：供外部渲染程序逐步驱动模拟并读取状态
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/simulation"
)

const (
	EndpointStep          = "step"
	EndpointTrafficLights = "trafficlights"
	EndpointSnapshot      = "snapshot"
	EndpointToggle        = "toggle"
	EndpointStop          = "stop"

	Path = "/ws"
)

// Stepper 可逐步推进的模拟
type Stepper interface {
	Step() error
	Engine() *simulation.Engine
}

// Request 客户端请求
type Request struct {
	Endpoint string `json:"endpoint"`
	ID       *int32 `json:"id,omitempty"` // toggle的路口ID
}

// StepReply step的回复
type StepReply struct {
	Tick     int32            `json:"tick"`
	Time     string           `json:"time"`
	Vehicles int              `json:"vehicles"`
	Stats    simulation.Stats `json:"stats"`
}

// LightView 信号灯状态
type LightView struct {
	ID               int32            `json:"id"`
	Mode             entity.LightMode `json:"mode"`
	Phase            entity.Phase     `json:"phase"`
	TicksSinceSwitch int32            `json:"ticksSinceSwitch"`
}

// ErrorReply 错误回复
type ErrorReply struct {
	Error string `json:"error"`
}

// StatusReply 无数据请求的回复
type StatusReply struct {
	Status string `json:"status"`
}

// Server WebSocket服务器
// 说明：所有连接共享同一个模拟，请求在互斥锁内串行处理
type Server struct {
	mu       sync.Mutex
	sim      Stepper
	upgrader websocket.Upgrader

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewServer 创建新的服务器实例
func NewServer(sim Stepper) *Server {
	return &Server{
		sim:      sim,
		stopped:  make(chan struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Handler HTTP处理器，WebSocket挂载在Path上
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.serveWS)
	return mux
}

// Stopped 收到stop请求后关闭
func (s *Server) Stopped() <-chan struct{} {
	return s.stopped
}

// RunServer 启动服务器，ctx取消或收到stop请求时优雅退出
func RunServer(ctx context.Context, address string, sim Stepper) error {
	s := NewServer(sim)
	srv := &http.Server{Addr: address, Handler: s.Handler()}
	// 监听失败直接返回时也要结束下面的goroutine
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
		case <-s.Stopped():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("server shutdown: %v", err)
		}
	}()
	log.Infof("Server listening at %v%v", address, Path)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("upgrade: %v", err)
		return
	}
	defer conn.Close()
	log.Infof("client %v connected", conn.RemoteAddr())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("read from %v: %v", conn.RemoteAddr(), err)
			} else {
				log.Infof("client %v disconnected", conn.RemoteAddr())
			}
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			if err := conn.WriteJSON(ErrorReply{Error: fmt.Sprintf("bad request: %v", err)}); err != nil {
				return
			}
			continue
		}
		reply, stop := s.Handle(req)
		if err := conn.WriteJSON(reply); err != nil {
			log.Warnf("write to %v: %v", conn.RemoteAddr(), err)
			return
		}
		if stop {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stop"))
			return
		}
	}
}

// Handle 处理一个请求
// 返回：回复内容与是否关闭连接
func (s *Server) Handle(req Request) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	engine := s.sim.Engine()

	switch req.Endpoint {
	case EndpointStep:
		if err := s.sim.Step(); err != nil {
			return ErrorReply{Error: err.Error()}, false
		}
		return StepReply{
			Tick:     engine.Tick(),
			Time:     engine.Clock().String(),
			Vehicles: engine.Live(),
			Stats:    engine.Stats(),
		}, false
	case EndpointTrafficLights:
		lights := make([]LightView, 0, len(engine.Junctions()))
		for _, j := range engine.Junctions() {
			tl := j.TrafficLight()
			lights = append(lights, LightView{
				ID:               j.ID(),
				Mode:             tl.Mode(),
				Phase:            tl.Phase(),
				TicksSinceSwitch: tl.TicksSinceSwitch(),
			})
		}
		return lights, false
	case EndpointSnapshot:
		return engine.Snapshot(), false
	case EndpointToggle:
		if req.ID == nil {
			return ErrorReply{Error: "toggle requires id"}, false
		}
		tl, err := engine.Light(*req.ID)
		if err != nil {
			return ErrorReply{Error: err.Error()}, false
		}
		if err := tl.Toggle(); err != nil {
			return ErrorReply{Error: err.Error()}, false
		}
		return StatusReply{Status: "toggle requested"}, false
	case EndpointStop:
		log.Info("stop requested")
		s.stopOnce.Do(func() {
			if c, ok := s.sim.(interface{ Close() }); ok {
				c.Close()
			}
			close(s.stopped)
		})
		return StatusReply{Status: "stopped"}, true
	}
	return ErrorReply{Error: fmt.Sprintf("unknown endpoint %q", req.Endpoint)}, false
}
