package memory

import "github.com/coreledger/ledgerd/internal/storage"

// Compile-time interface assertion documenting which contract Store satisfies.
var _ storage.Store = (*Store)(nil)
