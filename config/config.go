// Package config 从配置文件和环境变量加载 client.Config。
// 支持热更新回调；注意：首个请求发出后配置即被冻结，
// 文件变更只对尚未解析的 Client 生效。
package config

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/lgc202/httpkit/client"
)

// File 是配置文件的映射结构
type File struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`

	// Headers 会作为默认请求头注入每个请求
	Headers map[string]string `mapstructure:"headers"`

	// RequestIDHeader 关联 ID 的请求头名；为空时使用默认值
	RequestIDHeader string `mapstructure:"request_id_header"`

	Redirect RedirectFile `mapstructure:"redirect"`

	Transport TransportFile `mapstructure:"transport"`
}

// RedirectFile 重定向策略
type RedirectFile struct {
	Follow      bool `mapstructure:"follow"`
	MaxHops     int  `mapstructure:"max_hops"`
	AllowCycles bool `mapstructure:"allow_cycles"`
}

// TransportFile 底层传输参数
type TransportFile struct {
	DialTimeout           time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
	IdleConnTimeout       time.Duration `mapstructure:"idle_conn_timeout"`
	MaxIdleConns          int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost   int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost       int           `mapstructure:"max_conns_per_host"`
}

// ToClient 在 DefaultConfig 基础上应用文件内容
func (f File) ToClient() client.Config {
	cfg := client.DefaultConfig()
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.Timeout > 0 {
		cfg.Timeout = f.Timeout
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	for k, v := range f.Headers {
		cfg.DefaultHeaders.Set(k, v)
	}
	if f.RequestIDHeader != "" {
		cfg.RequestID.Header = f.RequestIDHeader
	}
	cfg.Redirect = client.RedirectPolicy{
		Follow:      f.Redirect.Follow,
		MaxHops:     f.Redirect.MaxHops,
		AllowCycles: f.Redirect.AllowCycles,
	}
	cfg.Transport = client.TransportConfig{
		DialTimeout:           f.Transport.DialTimeout,
		TLSHandshakeTimeout:   f.Transport.TLSHandshakeTimeout,
		ResponseHeaderTimeout: f.Transport.ResponseHeaderTimeout,
		IdleConnTimeout:       f.Transport.IdleConnTimeout,
		MaxIdleConns:          f.Transport.MaxIdleConns,
		MaxIdleConnsPerHost:   f.Transport.MaxIdleConnsPerHost,
		MaxConnsPerHost:       f.Transport.MaxConnsPerHost,
	}
	return cfg
}

// Loader 配置加载器
type Loader struct {
	v        *viper.Viper
	mu       sync.RWMutex
	value    File
	watchers []func(old, new client.Config)
}

// Option 加载选项
type Option func(*Loader)

// WithDefaults 设置默认值
func WithDefaults(defaults map[string]any) Option {
	return func(l *Loader) {
		for k, v := range defaults {
			l.v.SetDefault(k, v)
		}
	}
}

// WithEnv 绑定环境变量
func WithEnv(prefix string) Option {
	return func(l *Loader) {
		l.v.SetEnvPrefix(prefix)
		l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		l.v.AutomaticEnv()
	}
}

// Load 加载配置文件并自动监控变更
func Load(path string, opts ...Option) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)

	l := &Loader{v: v}
	for _, opt := range opts {
		opt(l)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, err
	}
	l.value = f

	l.watch()
	return l, nil
}

// Config 返回当前配置（并发安全）
func (l *Loader) Config() client.Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value.ToClient()
}

// OnChange 注册配置变更回调
func (l *Loader) OnChange(callback func(old, new client.Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watchers = append(l.watchers, callback)
}

func (l *Loader) watch() {
	var (
		debounceTimer *time.Timer
		debounceMu    sync.Mutex
	)

	l.v.OnConfigChange(func(_ fsnotify.Event) {
		debounceMu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
			l.handleConfigChange()
		})
		debounceMu.Unlock()
	})

	l.v.WatchConfig()
}

func (l *Loader) handleConfigChange() {
	l.mu.Lock()
	old := l.value

	if err := l.v.ReadInConfig(); err != nil {
		l.mu.Unlock()
		return
	}
	var f File
	if err := l.v.Unmarshal(&f); err != nil {
		l.mu.Unlock()
		return
	}
	l.value = f

	watchers := make([]func(old, new client.Config), len(l.watchers))
	copy(watchers, l.watchers)
	l.mu.Unlock()

	if reflect.DeepEqual(old, f) {
		return
	}

	oldCfg := old.ToClient()
	newCfg := f.ToClient()
	for _, cb := range watchers {
		func() {
			defer func() { _ = recover() }()
			cb(oldCfg, newCfg)
		}()
	}
}
