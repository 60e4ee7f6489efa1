package widget

import (
	"sync"
	"time"

	"medidesk-go/pkg/log"
)

const (
	// Version 是嵌入脚本对外暴露的版本号。
	Version = "2.1.0"
	// RootID 是挂件根节点的 DOM id。
	RootID = "medidesk-root"

	EventOpen  = "medidesk:open"
	EventClose = "medidesk:close"

	autoOpenDelay = time.Second
	// subscriberBuffer 是每个订阅者的事件缓冲，写满后丢弃新事件。
	subscriberBuffer = 16
)

// Event 是广播给订阅者的挂件事件。
type Event struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// State 是挂件的当前状态。
type State struct {
	Mounted bool   `json:"mounted"`
	Open    bool   `json:"open"`
	Version string `json:"version"`
	Config  Config `json:"config"`
}

// Bootstrap 持有进程内唯一的挂件状态：是否已挂载、是否展开，以及事件订阅者。
type Bootstrap struct {
	mu          sync.Mutex
	mounted     bool
	open        bool
	config      Config
	subscribers map[int]chan Event
	nextID      int
	timer       *time.Timer
	delay       time.Duration
}

// Default 是进程级的挂件实例。
var Default = NewBootstrap()

// NewBootstrap 创建一个未挂载的 Bootstrap。
func NewBootstrap() *Bootstrap {
	return &Bootstrap{
		config:      DefaultConfig(),
		subscribers: make(map[int]chan Event),
		delay:       autoOpenDelay,
	}
}

// EnsureMounted 以 cfg 挂载挂件。已挂载时不做任何改变并返回 false。
func (b *Bootstrap) EnsureMounted(cfg Config) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mounted {
		log.Warnf("MediDesk is already initialized")
		return false
	}
	b.mounted = true
	b.config = cfg
	log.Infow("MediDesk widget initialized", "position", cfg.Position, "theme", cfg.Theme, "hospitalId", cfg.HospitalID)
	return true
}

// Init 挂载挂件；配置了 autoOpen 时在一秒后自动展开。
func (b *Bootstrap) Init(cfg Config) bool {
	if !b.EnsureMounted(cfg) {
		return false
	}
	if cfg.AutoOpen {
		b.mu.Lock()
		b.timer = time.AfterFunc(b.delay, b.Open)
		b.mu.Unlock()
	}
	return true
}

// Open 展开挂件并广播 medidesk:open。
func (b *Bootstrap) Open() {
	b.setOpen(true)
}

// Close 收起挂件并广播 medidesk:close。
func (b *Bootstrap) Close() {
	b.setOpen(false)
}

// Toggle 切换展开状态，返回切换后的状态。
func (b *Bootstrap) Toggle() bool {
	b.mu.Lock()
	next := !b.open
	b.mu.Unlock()
	b.setOpen(next)
	return next
}

func (b *Bootstrap) setOpen(open bool) {
	name := EventClose
	if open {
		name = EventOpen
	}
	ev := Event{Name: name, At: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = open
	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			log.Warnf("挂件事件订阅者 %d 缓冲已满，丢弃事件 %s", id, name)
		}
	}
}

// Subscribe 订阅挂件事件，返回事件通道与取消函数。
func (b *Bootstrap) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// State 返回挂件的当前状态。
func (b *Bootstrap) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{Mounted: b.mounted, Open: b.open, Version: Version, Config: b.config}
}

// Stop 取消尚未触发的自动展开。
func (b *Bootstrap) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
