package domain

import (
	"context"
	"errors"
	"strings"
)

// Camada de domínio do dispatcher.
//
// Tipos de requisição/resposta e o contrato de transporte, sem net/http.

var (
	ErrUnknownMethod  = errors.New("unknown HTTP method")
	ErrOddHeaderPairs = errors.New("header key-value pair array does not have an even length")
	ErrQueueClosed    = errors.New("queue closed")
)

type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// ParseMethod normaliza o método, mas não valida: métodos desconhecidos
// só falham no caminho assíncrono.
func ParseMethod(s string) Method {
	return Method(strings.ToUpper(strings.TrimSpace(s)))
}

func (m Method) Supported() bool {
	return m == MethodGet || m == MethodPost
}

// Token é um valor opaco do chamador, devolvido sem modificação no callback.
type Token int64

type Request struct {
	URL    string
	Method Method

	Callback Token
	Payload  Token

	Body []byte
	// CacheFile, se não vazio, recebe os bytes crus da resposta antes do callback de sucesso.
	CacheFile string
	// Base64 codifica o payload de sucesso (encoding padrão).
	Base64          bool
	FollowRedirects bool

	// Header é o snapshot da tabela de headers pendentes no momento do Send.
	Header map[string]string
}

type Response struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport executa uma requisição. Cancelar ctx é a primitiva de cancelamento;
// a implementação pode ou não interromper uma transferência em andamento.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// ResponseCache persiste a resposta crua em um arquivo.
type ResponseCache interface {
	Write(path string, data []byte) error
}

// ConnectivityProbe responde se o processo tem rede.
type ConnectivityProbe interface {
	IsConnected() bool
}
