package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grod220/validator-finances/internal/solana"
)

const testIdentity = "LeaderIdentity11111111111111111111111111111"

// leaderRPCServer answers getLeaderSchedule and getBlock for a single epoch's
// canned schedule. Slots listed in skipped answer with the slot-skipped code.
func leaderRPCServer(t *testing.T, firstSlot int64, offsets []int64, fees map[int64]int64, skipped map[int64]bool) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		switch req.Method {
		case "getLeaderSchedule":
			var slot int64
			if err := json.Unmarshal(req.Params[0], &slot); err != nil {
				t.Errorf("schedule slot param: %v", err)
			}
			if slot != firstSlot+1 {
				t.Errorf("schedule requested at slot %d, want %d", slot, firstSlot+1)
			}
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{%q:%s}}`,
				req.ID, testIdentity, mustJSON(offsets))

		case "getBlock":
			var slot int64
			if err := json.Unmarshal(req.Params[0], &slot); err != nil {
				t.Errorf("block slot param: %v", err)
			}
			if skipped[slot] {
				fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32007,"message":"Slot %d was skipped"}}`,
					req.ID, slot)
				return
			}
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"blockTime":1765843200,"rewards":[`+
				`{"pubkey":"SomeStaker","lamports":999,"rewardType":"Rent"},`+
				`{"pubkey":%q,"lamports":%d,"rewardType":"Fee"}]}}`,
				req.ID, testIdentity, fees[slot])

		default:
			t.Errorf("unexpected RPC method %s", req.Method)
		}
	}))
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func TestLeaderFeeRPC_SumsFeesAndCountsSkips(t *testing.T) {
	const epoch = 900
	firstSlot := int64(epoch) * 432_000

	server := leaderRPCServer(t, firstSlot,
		[]int64{0, 1, 2},
		map[int64]int64{
			firstSlot:     12_000,
			firstSlot + 2: 15_000,
		},
		map[int64]bool{firstSlot + 1: true},
	)
	defer server.Close()

	src := LeaderFeeRPC{
		Client:   solana.NewHTTPClient(server.URL),
		Identity: testIdentity,
	}

	fees, err := src.FetchLeaderFees(context.Background(), epoch)
	if err != nil {
		t.Fatalf("FetchLeaderFees: %v", err)
	}

	if fees.Epoch != epoch || fees.LeaderSlots != 3 || fees.BlocksProduced != 2 {
		t.Errorf("fees = %+v, want 3 slots, 2 produced", fees)
	}
	if fees.FeeLamports != 27_000 {
		t.Errorf("FeeLamports = %d, want 27000", fees.FeeLamports)
	}
	if fees.SkippedSlots() != 1 {
		t.Errorf("SkippedSlots = %d, want 1", fees.SkippedSlots())
	}
}

func TestLeaderFeeRPC_EmptyScheduleIsZeroFact(t *testing.T) {
	const epoch = 901
	firstSlot := int64(epoch) * 432_000

	server := leaderRPCServer(t, firstSlot, nil, nil, nil)
	defer server.Close()

	src := LeaderFeeRPC{
		Client:   solana.NewHTTPClient(server.URL),
		Identity: testIdentity,
	}

	fees, err := src.FetchLeaderFees(context.Background(), epoch)
	if err != nil {
		t.Fatalf("FetchLeaderFees: %v", err)
	}

	// A published schedule with no assigned slots is a real zero, not a
	// primary-source failure.
	if fees == nil || fees.LeaderSlots != 0 || fees.FeeLamports != 0 {
		t.Errorf("fees = %+v, want a zero-valued fact", fees)
	}
}
