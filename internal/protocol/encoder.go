package protocol

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// EncodingType 编码类型
type EncodingType string

const (
	EncodingJSON EncodingType = "json"
)

// EventEncoder 事件编码器接口
type EventEncoder interface {
	Encode(evt *Event) ([]byte, error)
	Decode(data []byte) (*Event, error)
	EncodingType() EncodingType
}

// JSONEncoder JSON编码器
type JSONEncoder struct{}

func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

func (e *JSONEncoder) Encode(evt *Event) ([]byte, error) {
	return json.Marshal(evt)
}

func (e *JSONEncoder) Decode(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("解析事件失败: %w", err)
	}
	if evt.Name == "" {
		return nil, fmt.Errorf("事件缺少名称")
	}
	return &evt, nil
}

func (e *JSONEncoder) EncodingType() EncodingType {
	return EncodingJSON
}

// NewEvent 构造事件，payload 编码为 data 字段
func NewEvent(name string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化事件 %s 失败: %w", name, err)
	}
	return &Event{Name: name, Data: data}, nil
}

// MustEvent 同 NewEvent，仅用于编码不会失败的内部负载
func MustEvent(name string, payload any) *Event {
	evt, err := NewEvent(name, payload)
	if err != nil {
		panic(err)
	}
	return evt
}

// Bind 将 data 字段解码到 v
func (e *Event) Bind(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("事件 %s 缺少数据", e.Name)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("解析事件 %s 数据失败: %w", e.Name, err)
	}
	return nil
}
