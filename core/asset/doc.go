// Package asset provides the identity-keyed asset entry store.
//
// Every registered asset is represented by an Entry binding a Guid to a Kind and
// a logical name. The in-memory instance behind an Entry is produced lazily by an
// injected load callback and cached until it is explicitly unloaded.
//
// # Components
//
//   - Guid: a 128-bit identity backed by google/uuid.
//   - Kind: the closed set of asset kinds the engine understands.
//   - Registry: maps kinds to file extensions and load functions.
//   - Bank: the guid -> entry and (kind, name) -> entry store.
//
// # Cache Contract
//
// The Bank keeps a strong reference to every loaded instance. Unload drops it and,
// when the instance implements Releaser, calls Release so that the instance can
// hand back anything it borrowed (for example a reference to a code module).
//
// # Usage
//
//	reg := asset.NewRegistry()
//	_ = reg.Register(asset.KindText, []string{".txt"}, loadText)
//
//	bank := asset.NewBank(reg, func(e *asset.Entry) (asset.Asset, error) {
//	    return reg.Load(e.Kind(), openStream(e), nil)
//	})
//	entry, err := bank.Add(asset.KindText, asset.NewGuid(), "Docs/readme")
//	text := bank.Get(entry.Guid())
package asset
