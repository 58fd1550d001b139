package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

func TestPoolStoreInsertIfAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pools.db")
	s, err := NewPoolStore(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first := domain.PoolCacheEntry{
		Network:       "arbitrum",
		Token:         "WETH",
		PoolAddress:   common.HexToAddress("0xC6962004f452bE9203591991D15f6b388e09E8D0"),
		FeeTier:       500,
		TokenIsToken0: true,
	}
	if err := s.InsertIfAbsent(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := first
	second.PoolAddress = common.HexToAddress("0x0000000000000000000000000000000000000001")
	second.FeeTier = 3000
	if err := s.InsertIfAbsent(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "arbitrum", "WETH")
	if err != nil {
		t.Fatal(err)
	}
	if got != first {
		t.Fatalf("Get = %+v, want first writer %+v", got, first)
	}
	if _, err := s.Get(ctx, "base", "WETH"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing entry err = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewPoolStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	all, err := reopened.List(ctx)
	if err != nil || len(all) != 1 || all[0] != first {
		t.Fatalf("List after reopen = %+v, %v", all, err)
	}
}

func TestPoolStoreConcurrentFirstWrite(t *testing.T) {
	s, err := NewPoolStore(filepath.Join(t.TempDir(), "pools.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.InsertIfAbsent(ctx, domain.PoolCacheEntry{
				Network: "base", Token: "LINK",
				PoolAddress: common.BigToAddress(common.Big1), FeeTier: uint32(100 * (i + 1)),
			})
		}()
	}
	wg.Wait()

	all, err := s.List(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("rows = %+v, %v", all, err)
	}
}
