package server

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"time"
)

// TLSConfig TLS配置
type TLSConfig struct {
	CertFile string // 证书文件路径
	KeyFile  string // 私钥文件路径
	Enabled  bool   // 是否启用TLS
}

// NewTLSConfig 创建TLS配置
func NewTLSConfig(certFile, keyFile string, enabled bool) *TLSConfig {
	return &TLSConfig{
		CertFile: certFile,
		KeyFile:  keyFile,
		Enabled:  enabled,
	}
}

// GetTLSConfig 获取标准TLS配置
func (c *TLSConfig) GetTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12, // 最低TLS 1.2
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	}
}

// ValidateCertificates 验证证书文件
func (c *TLSConfig) ValidateCertificates() error {
	if !c.Enabled {
		return nil
	}

	if _, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile); err != nil {
		return fmt.Errorf("验证TLS证书失败: %w", err)
	}

	log.Printf("TLS证书验证成功: %s", c.CertFile)
	return nil
}

// NewHTTPServer 创建 HTTP 服务器，启用 TLS 时附带 TLS 配置
//
// 不设置 WriteTimeout：WebSocket 连接是长连接，写超时由连接自身控制。
func (c *TLSConfig) NewHTTPServer(handler http.Handler, addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if c.Enabled {
		srv.TLSConfig = c.GetTLSConfig()
	}
	return srv
}

// ListenAndServe 根据配置启动 HTTP 或 HTTPS 服务
func (c *TLSConfig) ListenAndServe(srv *http.Server) error {
	if !c.Enabled {
		log.Printf("HTTP服务器已启动: %s", srv.Addr)
		return srv.ListenAndServe()
	}

	log.Printf("HTTPS服务器已启动: %s，使用证书: %s", srv.Addr, c.CertFile)
	return srv.ListenAndServeTLS(c.CertFile, c.KeyFile)
}
