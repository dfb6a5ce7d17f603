package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Destaw-dev/listali-sub002/internal/model"
	"github.com/Destaw-dev/listali-sub002/internal/quantity"
)

type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErrs int
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErrs > 0 {
		m.putErrs--
		return nil, errors.New("503 slow down")
	}
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func testArchiver(client s3Client) *Archiver {
	return &Archiver{
		client: client,
		bucket: "test-bucket",
		logger: slog.Default(),
		now:    func() time.Time { return time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC) },
	}
}

func sampleSnapshot() (model.ShoppingList, []model.Item) {
	list := model.ShoppingList{ID: "list-1", Name: "Groceries"}
	items := []model.Item{
		{ID: "a", ListID: "list-1", Name: "Milk", TotalQuantity: 2, PurchasedQuantity: 2, Status: quantity.StatusPurchased},
		{ID: "b", ListID: "list-1", Name: "Eggs", TotalQuantity: 12, Status: quantity.StatusPending},
	}
	return list, items
}

func TestArchiveFetchRoundTrip(t *testing.T) {
	client := newMockS3()
	a := testArchiver(client)
	list, items := sampleSnapshot()

	key, err := a.Archive(context.Background(), list, items, "passphrase")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if key != "archives/list-1/2025-06-01T10-30-00.json.enc" {
		t.Errorf("key = %q", key)
	}

	// The stored object must not contain recognizable plaintext.
	if bytes.Contains(client.objects[key], []byte("Milk")) {
		t.Error("snapshot stored unencrypted")
	}

	snap, err := a.Fetch(context.Background(), key, "passphrase")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snap.List.ID != "list-1" || len(snap.Items) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Items[0].Status != quantity.StatusPurchased {
		t.Errorf("item status = %q", snap.Items[0].Status)
	}
}

func TestArchiveRetriesTransientFailures(t *testing.T) {
	client := newMockS3()
	client.putErrs = 2
	a := testArchiver(client)
	list, items := sampleSnapshot()

	key, err := a.Archive(context.Background(), list, items, "passphrase")
	if err != nil {
		t.Fatalf("archive with transient failures: %v", err)
	}
	if _, ok := client.objects[key]; !ok {
		t.Error("object missing after retries")
	}
}

func TestFetchWrongPassphrase(t *testing.T) {
	client := newMockS3()
	a := testArchiver(client)
	list, items := sampleSnapshot()

	key, err := a.Archive(context.Background(), list, items, "passphrase")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	if _, err := a.Fetch(context.Background(), key, "wrong"); err == nil {
		t.Fatal("expected decrypt failure with wrong passphrase")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt) != saltSize {
		t.Fatalf("salt length = %d, want %d", len(salt), saltSize)
	}

	plaintext := []byte("the shopping is done")
	sealed, err := Encrypt(plaintext, "pw", salt)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	got, err := Decrypt(sealed, "pw")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip = %q, want %q", got, plaintext)
	}
}

func TestDecryptTamperedData(t *testing.T) {
	salt, _ := GenerateSalt()
	sealed, _ := Encrypt([]byte("payload"), "pw", salt)
	sealed[len(sealed)-1] ^= 0xFF

	if _, err := Decrypt(sealed, "pw"); err == nil {
		t.Fatal("expected authentication failure for tampered ciphertext")
	}
}

func TestDecryptTooShort(t *testing.T) {
	if _, err := Decrypt([]byte("short"), "pw"); err == nil {
		t.Fatal("expected error for truncated data")
	}
}
