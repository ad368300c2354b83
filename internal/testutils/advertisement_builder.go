package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/srg/wbb/internal/device"
)

// BoardName is the local name a balance board advertises.
const BoardName = "Nintendo RVL-WBC-01"

// StaticAdvertisement is a fixed device.Advertisement used by scanner tests.
type StaticAdvertisement struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Rssi    int    `json:"rssi"`
	Conn    bool   `json:"connectable"`
}

func (a *StaticAdvertisement) LocalName() string { return a.Name }
func (a *StaticAdvertisement) Addr() string      { return a.Address }
func (a *StaticAdvertisement) RSSI() int         { return a.Rssi }
func (a *StaticAdvertisement) Connectable() bool { return a.Conn }

var _ device.Advertisement = (*StaticAdvertisement)(nil)

// AdvertisementBuilder builds advertisements for testing.
type AdvertisementBuilder struct {
	adv StaticAdvertisement
}

// NewAdvertisementBuilder creates a builder with rssi=-50 and connectable=true.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: StaticAdvertisement{Rssi: -50, Conn: true}}
}

// NewBoardAdvertisement is a shortcut for a balance board advertisement at addr.
func NewBoardAdvertisement(addr string) *StaticAdvertisement {
	return NewAdvertisementBuilder().WithName(BoardName).WithAddress(addr).Build()
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.Rssi = rssi
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.Conn = c
	return b
}

// FromJSON fills builder fields from a JSON string with format support.
// Fields absent from the JSON keep their current values.
// Panics on invalid JSON as this is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)
	if err := json.Unmarshal([]byte(jsonStr), &b.adv); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}
	return b
}

// Build returns a copy of the configured advertisement.
func (b *AdvertisementBuilder) Build() *StaticAdvertisement {
	adv := b.adv
	return &adv
}
