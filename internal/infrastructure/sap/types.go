package sap

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Card types as the Service Layer spells them
const (
	CardTypeCustomer = "cCustomer"
	CardTypeSupplier = "cSupplier"
)

// Address types as the Service Layer spells them
const (
	AddressTypeBillTo = "bo_BillTo"
	AddressTypeShipTo = "bo_ShipTo"
)

var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Date is a Service Layer date. SAP sends plain dates, RFC3339 timestamps or
// timestamps without a zone depending on the endpoint. Values without an
// offset are wall-clock readings of the server and are placed in its zone by In.
type Date struct {
	time.Time
	zoned bool
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	t, zoned, err := parseDate(s, time.UTC)
	if err != nil {
		return err
	}
	*d = Date{Time: t, zoned: zoned}
	return nil
}

// In returns the instant in UTC, reading a zoneless value in loc. The zero
// date gives nil.
func (d Date) In(loc *time.Location) *time.Time {
	if d.IsZero() {
		return nil
	}
	if d.zoned {
		t := d.UTC()
		return &t
	}
	y, mo, day := d.Date()
	h, m, s := d.Clock()
	t := time.Date(y, mo, day, h, m, s, d.Nanosecond(), loc).UTC()
	return &t
}

// at places the server time of day h:m:s on the calendar day of d. Query
// rows send that day as midnight UTC, so the day is taken as written.
func (d Date) at(loc *time.Location, h, m, s int) *time.Time {
	if d.IsZero() {
		return nil
	}
	y, mo, day := d.Date()
	t := time.Date(y, mo, day, h, m, s, 0, loc).UTC()
	return &t
}

// ParseDate parses any of the date forms the Service Layer emits, reading
// zoneless values in UTC
func ParseDate(s string) (time.Time, error) {
	return ParseDateIn(s, time.UTC)
}

// ParseDateIn is ParseDate with zoneless values read in loc
func ParseDateIn(s string, loc *time.Location) (time.Time, error) {
	t, _, err := parseDate(s, loc)
	return t, err
}

func parseDate(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true, nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("sap: unrecognised date %q", s)
}

// withClock adds a server time of day to a date. SAP reports it as "15:04:05"
// on business partners and as an HHMMSS integer on query rows.
func withClock(date Date, clock string, loc *time.Location) *time.Time {
	if clock == "" {
		return date.In(loc)
	}
	var h, m, s int
	if strings.Contains(clock, ":") {
		t, err := time.Parse("15:04:05", clock)
		if err != nil {
			return date.In(loc)
		}
		h, m, s = t.Clock()
	} else {
		n, err := strconv.Atoi(clock)
		if err != nil || n < 0 {
			return date.In(loc)
		}
		h, m, s = n/10000, n/100%100, n%100
	}
	return date.at(loc, h, m, s)
}

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

// collection is the OData envelope of a list response
type collection struct {
	Value      json.RawMessage `json:"value"`
	NextLink   string          `json:"@odata.nextLink"`
	NextLinkV3 string          `json:"odata.nextLink"`
}

func (c collection) next() string {
	if c.NextLink != "" {
		return c.NextLink
	}
	return c.NextLinkV3
}

// errorResponse is the Service Layer error body
type errorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message struct {
			Lang  string `json:"lang"`
			Value string `json:"value"`
		} `json:"message"`
	} `json:"error"`
}

type loginRequest struct {
	CompanyDB string `json:"CompanyDB"`
	UserName  string `json:"UserName"`
	Password  string `json:"Password"`
}

// ItemGroupDTO is a row of /ItemGroups
type ItemGroupDTO struct {
	Number    int    `json:"Number"`
	GroupName string `json:"GroupName"`
}

// ManufacturerDTO is a row of /Manufacturers
type ManufacturerDTO struct {
	Code             int    `json:"Code"`
	ManufacturerName string `json:"ManufacturerName"`
}

// ItemRowDTO is a row of the item snapshot query
type ItemRowDTO struct {
	ItemCode         string     `json:"ItemCode"`
	ItemName         string     `json:"ItemName"`
	GroupCode        int        `json:"ItmsGrpCod"`
	GroupName        string     `json:"ItmsGrpNam"`
	ManufacturerCode *int       `json:"FirmCode"`
	ManufacturerName string     `json:"FirmName"`
	MPN              string     `json:"SuppCatNum"`
	Description      string     `json:"UserText"`
	UoM              string     `json:"InvntryUom"`
	CreateDate       Date       `json:"CreateDate"`
	UpdateDate       Date       `json:"UpdateDate"`
	UpdateTS         flexString `json:"UpdateTS"`
}

// BPAddressDTO is one entry of BusinessPartner.BPAddresses
type BPAddressDTO struct {
	AddressName string `json:"AddressName"`
	AddressType string `json:"AddressType"`
	Street      string `json:"Street"`
	City        string `json:"City"`
	ZipCode     string `json:"ZipCode"`
	State       string `json:"State"`
	Country     string `json:"Country"`
}

// BusinessPartnerDTO is a row of /BusinessPartners
type BusinessPartnerDTO struct {
	CardCode     string         `json:"CardCode"`
	CardName     string         `json:"CardName"`
	CardType     string         `json:"CardType"`
	GroupCode    int            `json:"GroupCode"`
	Phone1       string         `json:"Phone1"`
	EmailAddress string         `json:"EmailAddress"`
	Currency     string         `json:"Currency"`
	CreateDate   Date           `json:"CreateDate"`
	CreateTime   string         `json:"CreateTime"`
	UpdateDate   Date           `json:"UpdateDate"`
	UpdateTime   string         `json:"UpdateTime"`
	BPAddresses  []BPAddressDTO `json:"BPAddresses"`
}
