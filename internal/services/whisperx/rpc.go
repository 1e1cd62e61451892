package whisperx

import (
	"encoding/json"
	"fmt"
)

const jsonRPCVersion = "2.0"

// JSON-RPC 2.0 error codes emitted by the service.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// Segment is one text window submitted for forced alignment.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Word is a single aligned word returned by the service.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score"`
}

// AlignedSegment mirrors an input Segment with its word timings.
type AlignedSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

// AlignResult is the decoded align response.
type AlignResult struct {
	Segments  []AlignedSegment `json:"segments"`
	Language  string           `json:"language"`
	Duration  float64          `json:"duration"`
	Cancelled bool             `json:"cancelled"`
}

// Progress is a service progress notification.
type Progress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// Status is the get_status response.
type Status struct {
	Initialized bool   `json:"initialized"`
	Processing  bool   `json:"processing"`
	Device      string `json:"device"`
	Language    string `json:"language"`
}

// RPCError is a JSON-RPC error object returned by the service.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("whisperx rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      *int64 `json:"id,omitempty"`
}

// rpcMessage is any line read from the service: a response (id set) or a
// notification (method set, no id).
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

type initializeParams struct {
	Model       string `json:"model"`
	Language    string `json:"language"`
	Device      string `json:"device"`
	ComputeType string `json:"compute_type"`
	HFToken     string `json:"hf_token,omitempty"`
}

type alignParams struct {
	AudioPath string    `json:"audio_path"`
	Segments  []Segment `json:"segments"`
}
