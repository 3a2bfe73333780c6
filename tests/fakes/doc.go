// Package fakes provides test doubles for approtate's collaborator
// interfaces.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior. FakeVault and FakeDirectory can share a CallLog so a
// test can assert on the order of calls across both:
//
//	log := fakes.NewCallLog()
//	store := fakes.NewFakeVault(log, map[string]string{"ClientSecretName": "old-secret"})
//	dir := fakes.NewFakeDirectory(log, "app-object-id", nil)
//	// run the job...
//	assert.Less(t, log.Index("directory.add app-object-id"), log.Index("directory.get app-object-id"))
package fakes
