package obslog

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// parquetRecord mirrors the CSV columns with typed prices.
type parquetRecord struct {
	Timestamp int64   `parquet:"name=timestamp, type=INT64"`
	Source    string  `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8"`
	Chain     string  `parquet:"name=chain, type=BYTE_ARRAY, convertedtype=UTF8"`
	Token     string  `parquet:"name=token, type=BYTE_ARRAY, convertedtype=UTF8"`
	PriceUSD  string  `parquet:"name=price_usd, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price     float64 `parquet:"name=price, type=DOUBLE"`
	Bid       float64 `parquet:"name=bid_price, type=DOUBLE"`
	Ask       float64 `parquet:"name=ask_price, type=DOUBLE"`
	FeePct    float64 `parquet:"name=fee_pct, type=DOUBLE"`
	Family    string  `parquet:"name=family, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// memFile is a write-only in-memory parquet sink.
type memFile struct {
	buf *bytes.Buffer
}

func newMemFile() *memFile { return &memFile{buf: &bytes.Buffer{}} }

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buf.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buf.Write(b) }
func (m *memFile) Close() error                              { return nil }

// EncodeParquet encodes obs as a snappy-compressed Parquet file. The exact
// decimal price is kept as text next to a float64 copy for query engines.
func EncodeParquet(obs []domain.Observation) ([]byte, error) {
	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, new(parquetRecord), 1)
	if err != nil {
		return nil, fmt.Errorf("obslog: new parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, o := range obs {
		if err := pw.Write(toParquet(o)); err != nil {
			_ = pw.WriteStop()
			return nil, fmt.Errorf("obslog: write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("obslog: finalize parquet: %w", err)
	}
	return mem.buf.Bytes(), nil
}

func toParquet(o domain.Observation) parquetRecord {
	rec := parquetRecord{
		Timestamp: o.Timestamp,
		Source:    o.Venue,
		Chain:     o.Segment,
		Token:     o.Token,
		PriceUSD:  o.Price.String(),
		Price:     o.Price.InexactFloat64(),
		Family:    o.Family().String(),
	}
	if bid, ok := o.Bid(); ok {
		rec.Bid = bid.InexactFloat64()
	}
	if ask, ok := o.Ask(); ok {
		rec.Ask = ask.InexactFloat64()
	}
	if fee, ok := o.FeeRate(); ok {
		rec.FeePct = fee.InexactFloat64() * 100
	}
	return rec
}
