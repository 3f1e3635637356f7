package client

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/tidwall/gjson"
)

// Extra holds the object members a typed record does not declare. They are
// kept verbatim on decode and written back on encode, so a record read from
// the backend and stored locally loses nothing.
type Extra map[string]json.RawMessage

// decodeObject walks the members of a JSON object, offering each to claim.
// Members claim rejects are collected into the returned Extra. A JSON null
// reports ok false and leaves the caller's value alone.
func decodeObject(data []byte, kind string, claim func(key string, v gjson.Result) bool) (extra Extra, ok bool, err error) {
	if !gjson.ValidBytes(data) {
		return nil, false, fmt.Errorf("%s: invalid JSON", kind)
	}
	res := gjson.ParseBytes(data)
	if res.Type == gjson.Null {
		return nil, false, nil
	}
	if !res.IsObject() {
		return nil, false, fmt.Errorf("%s: expected an object, got %s", kind, res.Type)
	}
	res.ForEach(func(k, v gjson.Result) bool {
		if claim(k.String(), v) {
			return true
		}
		if extra == nil {
			extra = Extra{}
		}
		extra[k.String()] = json.RawMessage(v.Raw)
		return true
	})
	return extra, true, nil
}

// encodeObject marshals known and lays its members over extra.
func encodeObject(known any, extra Extra) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	merged := make(map[string]json.RawMessage, len(extra)+len(fields))
	maps.Copy(merged, extra)
	maps.Copy(merged, fields)
	return json.Marshal(merged)
}

// setString accepts strings and numbers. Numbers keep their literal text,
// so a numeric id 7 reads as "7".
func setString(v gjson.Result, dst *string) bool {
	switch v.Type {
	case gjson.Null:
		return true
	case gjson.String, gjson.Number:
		*dst = v.String()
		return true
	}
	return false
}

func setNumber(v gjson.Result, dst *float64) bool {
	switch v.Type {
	case gjson.Null:
		return true
	case gjson.Number:
		*dst = v.Float()
		return true
	}
	return false
}

// UnmarshalJSON decodes a ticket leniently: ids and numbers may be JSON
// numbers, and members of an unexpected kind land in Extra.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	var next Ticket
	extra, ok, err := decodeObject(data, "ticket", func(key string, v gjson.Result) bool {
		switch key {
		case "id":
			return setString(v, &next.ID)
		case "lottery_id":
			return setString(v, &next.LotteryID)
		case "ticket_number":
			return setString(v, &next.Number)
		case "price":
			return setNumber(v, &next.Price)
		case "status":
			return setString(v, &next.Status)
		case "draw_date":
			return setString(v, &next.DrawDate)
		case "purchased_at":
			return setString(v, &next.PurchasedAt)
		}
		return false
	})
	if err != nil || !ok {
		return err
	}
	next.Extra = extra
	*t = next
	return nil
}

// MarshalJSON writes the declared fields over Extra.
func (t Ticket) MarshalJSON() ([]byte, error) {
	type plain Ticket
	return encodeObject(plain(t), t.Extra)
}

// UnmarshalJSON decodes a retailer profile, keeping undeclared members in
// Extra.
func (p *RetailerProfile) UnmarshalJSON(data []byte) error {
	var next RetailerProfile
	extra, ok, err := decodeObject(data, "retailer profile", func(key string, v gjson.Result) bool {
		switch key {
		case "_id":
			return setString(v, &next.ID)
		case "brandName":
			return setString(v, &next.BrandName)
		case "logo":
			return setString(v, &next.Logo)
		case "uniqueId":
			return setString(v, &next.UniqueID)
		case "phoneNumber":
			return setString(v, &next.PhoneNumber)
		case "customization":
			if v.Type == gjson.Null {
				return true
			}
			return v.IsObject() && json.Unmarshal([]byte(v.Raw), &next.Customization) == nil
		}
		return false
	})
	if err != nil || !ok {
		return err
	}
	next.Extra = extra
	*p = next
	return nil
}

// MarshalJSON writes the declared fields over Extra.
func (p RetailerProfile) MarshalJSON() ([]byte, error) {
	type plain RetailerProfile
	return encodeObject(plain(p), p.Extra)
}

// UnmarshalJSON decodes a catalog entry. "id" wins over "_id" when both are
// present.
func (l *Lottery) UnmarshalJSON(data []byte) error {
	var next Lottery
	var altID string
	extra, ok, err := decodeObject(data, "lottery", func(key string, v gjson.Result) bool {
		switch key {
		case "id":
			return setString(v, &next.ID)
		case "_id":
			return setString(v, &altID)
		case "name":
			return setString(v, &next.Name)
		case "price":
			return setNumber(v, &next.Price)
		case "draw_date", "drawDate":
			return setString(v, &next.DrawDate)
		}
		return false
	})
	if err != nil || !ok {
		return err
	}
	if next.ID == "" {
		next.ID = altID
	}
	next.Extra = extra
	*l = next
	return nil
}

// MarshalJSON writes the declared fields over Extra.
func (l Lottery) MarshalJSON() ([]byte, error) {
	type plain Lottery
	return encodeObject(plain(l), l.Extra)
}
