package redis

import (
	"fmt"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// EncodeObservations serialises obs as a protobuf ListValue of Structs.
// Decimals travel as strings so no precision is lost.
func EncodeObservations(obs []domain.Observation) ([]byte, error) {
	items := make([]any, 0, len(obs))
	for _, o := range obs {
		items = append(items, observationFields(o))
	}
	list, err := structpb.NewList(items)
	if err != nil {
		return nil, fmt.Errorf("redis: encode observations: %w", err)
	}
	data, err := proto.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("redis: marshal observations: %w", err)
	}
	return data, nil
}

// EncodeObservation serialises a single observation as a protobuf Struct.
func EncodeObservation(o domain.Observation) ([]byte, error) {
	s, err := structpb.NewStruct(observationFields(o))
	if err != nil {
		return nil, fmt.Errorf("redis: encode observation: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeObservations is the inverse of EncodeObservations.
func DecodeObservations(data []byte) ([]domain.Observation, error) {
	var list structpb.ListValue
	if err := proto.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("redis: unmarshal observations: %w", err)
	}
	out := make([]domain.Observation, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		o, err := observationFromStruct(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("redis: observation %d: %w", i, err)
		}
		out = append(out, o)
	}
	return out, nil
}

// DecodeObservation is the inverse of EncodeObservation.
func DecodeObservation(data []byte) (domain.Observation, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return domain.Observation{}, fmt.Errorf("redis: unmarshal observation: %w", err)
	}
	return observationFromStruct(&s)
}

func observationFields(o domain.Observation) map[string]any {
	m := map[string]any{
		"venue":   o.Venue,
		"segment": o.Segment,
		"token":   o.Token,
		"price":   o.Price.String(),
		"ts":      o.Timestamp,
		"family":  o.Family().String(),
	}
	switch q := o.Detail.(type) {
	case domain.AMMQuote:
		m["bid"] = q.Bid.String()
		m["ask"] = q.Ask.String()
		m["fee_rate"] = q.FeeRate.String()
	case domain.DerivativeQuote:
		m["fee_rate"] = q.FeeRate.String()
	}
	return m
}

func observationFromStruct(s *structpb.Struct) (domain.Observation, error) {
	if s == nil {
		return domain.Observation{}, fmt.Errorf("not a struct")
	}
	f := s.GetFields()
	str := func(k string) string { return f[k].GetStringValue() }
	dec := func(k string) (decimal.Decimal, error) {
		v := str(k)
		if v == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(v)
	}

	price, err := decimal.NewFromString(str("price"))
	if err != nil {
		return domain.Observation{}, fmt.Errorf("price: %w", err)
	}
	o := domain.Observation{
		Venue:     str("venue"),
		Segment:   str("segment"),
		Token:     str("token"),
		Price:     price,
		Timestamp: int64(f["ts"].GetNumberValue()),
	}

	switch str("family") {
	case domain.FamilyAMM.String():
		bid, err1 := dec("bid")
		ask, err2 := dec("ask")
		fee, err3 := dec("fee_rate")
		if err := firstErr(err1, err2, err3); err != nil {
			return domain.Observation{}, err
		}
		o.Detail = domain.AMMQuote{Bid: bid, Ask: ask, FeeRate: fee}
	case domain.FamilyDerivative.String():
		fee, err := dec("fee_rate")
		if err != nil {
			return domain.Observation{}, err
		}
		o.Detail = domain.DerivativeQuote{FeeRate: fee}
	default:
		o.Detail = domain.CentralizedQuote{}
	}
	return o, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
