package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	program    = solana.MustPublicKeyFromBase58("FASTz9tarYt7xR67mA2zDtr15iQqjsDoU4FxyUrZG8vb")
	delegation = solana.MustPublicKeyFromBase58("DELeGGvXpWV2fqJUhqcF5ZSYMS4JTLjteaAMARRSaeSh")
	quoteMint  = solana.MustPublicKeyFromBase58("G1vK94GMUtw3cTYHzDiaPox4uGtgsCMJXZ8epi4WgYJZ")
)

// ---- address derivation ----

func TestDeriveMarket(t *testing.T) {
	a, err := DeriveMarket(program, solana.SolMint, quoteMint)
	require.NoError(t, err)

	again, err := DeriveMarket(program, solana.SolMint, quoteMint)
	require.NoError(t, err)
	assert.Equal(t, a, again)

	want, bump, err := solana.FindProgramAddress([][]byte{[]byte("market"), solana.SolMint[:], quoteMint[:]}, program)
	require.NoError(t, err)
	assert.Equal(t, want, a.Market)
	assert.Equal(t, bump, a.Bump)

	assert.NotEqual(t, a.BaseVault, a.QuoteVault)
	assert.False(t, a.Market.IsOnCurve())

	swapped, err := DeriveMarket(program, quoteMint, solana.SolMint)
	require.NoError(t, err)
	assert.NotEqual(t, a.Market, swapped.Market)
}

func TestDeriveDelegation(t *testing.T) {
	a, err := DeriveMarket(program, solana.SolMint, quoteMint)
	require.NoError(t, err)

	d, err := DeriveDelegation(program, delegation, a.Market)
	require.NoError(t, err)

	buf, _, err := solana.FindProgramAddress([][]byte{[]byte("buffer"), a.Market[:]}, program)
	require.NoError(t, err)
	assert.Equal(t, buf, d.Buffer)

	rec, _, err := solana.FindProgramAddress([][]byte{[]byte("delegation"), a.Market[:]}, delegation)
	require.NoError(t, err)
	assert.Equal(t, rec, d.Record)
	assert.NotEqual(t, d.Record, d.Metadata)
}

func TestTokenAccount(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	got, err := TokenAccount(owner, quoteMint)
	require.NoError(t, err)
	want, _, err := solana.FindAssociatedTokenAddress(owner, quoteMint)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// ---- client ----

type fakeRPC struct {
	accounts map[solana.PublicKey][]byte
	slot     uint64
	sent     []*solana.Transaction
	opts     []rpc.TransactionOpts
	sendErr  error
	statuses []*rpc.SignatureStatusesResult
}

func (f *fakeRPC) GetAccountInfoWithOpts(_ context.Context, key solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	data, ok := f.accounts[key]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(data)}}, nil
}

func (f *fakeRPC) GetSlot(context.Context, rpc.CommitmentType) (uint64, error) { return f.slot, nil }

func (f *fakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{1}}}, nil
}

func (f *fakeRPC) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.opts = append(f.opts, opts)
	return tx.Signatures[0], nil
}

func (f *fakeRPC) GetSignatureStatuses(context.Context, bool, ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if len(f.statuses) == 0 {
		return &rpc.GetSignatureStatusesResult{}, nil
	}
	s := f.statuses[0]
	f.statuses = f.statuses[1:]
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{s}}, nil
}

func memo(payer solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(program, solana.AccountMetaSlice{solana.NewAccountMeta(payer, true, true)}, []byte{1})
}

func TestSubmitSignsAndSends(t *testing.T) {
	signer := solana.NewWallet().PrivateKey
	f := &fakeRPC{}
	c := New(Config{Name: "rollup", SkipPreflight: true}, f, signer, nil)
	assert.Equal(t, signer.PublicKey(), c.Payer())

	sig, err := c.Submit(context.Background(), []solana.Instruction{memo(signer.PublicKey())})
	require.NoError(t, err)
	require.Len(t, f.sent, 1)
	assert.Equal(t, f.sent[0].Signatures[0], sig)
	assert.True(t, f.opts[0].SkipPreflight)
	assert.Equal(t, rpc.CommitmentConfirmed, f.opts[0].PreflightCommitment)
	assert.Equal(t, signer.PublicKey(), f.sent[0].Message.AccountKeys[0])
	assert.NoError(t, f.sent[0].VerifySignatures())
}

func TestSubmitErrors(t *testing.T) {
	signer := solana.NewWallet().PrivateKey
	_, err := New(Config{Name: "base"}, &fakeRPC{}, signer, nil).Submit(context.Background(), nil)
	assert.Error(t, err)

	f := &fakeRPC{sendErr: errors.New("boom")}
	_, err = New(Config{Name: "base"}, f, signer, nil).Submit(context.Background(), []solana.Instruction{memo(signer.PublicKey())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base: send transaction")
}

func TestSubmitConfirm(t *testing.T) {
	signer := solana.NewWallet().PrivateKey
	f := &fakeRPC{statuses: []*rpc.SignatureStatusesResult{
		nil,
		{ConfirmationStatus: rpc.ConfirmationStatusProcessed},
		{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
	}}
	c := New(Config{Name: "base", Confirm: true, PollInterval: time.Millisecond}, f, signer, nil)

	_, err := c.Submit(context.Background(), []solana.Instruction{memo(signer.PublicKey())})
	require.NoError(t, err)
	assert.Empty(t, f.statuses)

	f.statuses = []*rpc.SignatureStatusesResult{{Err: map[string]any{"InstructionError": 0}}}
	_, err = c.Submit(context.Background(), []solana.Instruction{memo(signer.PublicKey())})
	assert.ErrorContains(t, err, "failed")
}

func TestFetchAccount(t *testing.T) {
	key := solana.NewWallet().PublicKey()
	f := &fakeRPC{accounts: map[solana.PublicKey][]byte{key: {1, 2, 3}}, slot: 99}
	c := New(Config{Name: "rollup"}, f, solana.NewWallet().PrivateKey, nil)

	data, err := c.FetchAccount(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = c.FetchAccount(context.Background(), solana.NewWallet().PublicKey())
	assert.True(t, errors.Is(err, ErrAccountNotFound))

	slot, err := c.CurrentSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(99), slot)
}
