// Package hooks binds the public session store into a component render
// lifecycle.
//
// The adapter mirrors the rules a hydrating renderer needs: the
// prerendered value is deterministic (EmptyPublicData, IsLoading=true)
// unless the caller supplies an initial value or suspense mode reads the
// store synchronously, and the stored value is only applied at
// mount-time resync so server and client markup can never disagree.
//
//	handle, err := hooks.UseSession(rt, store)
//	if err != nil {
//	    // server + suspense: a RenderingSuspendedError the host
//	    // framework catches and retries after the data is ready
//	}
//	handle.OnChange(func(cs session.ClientSession) { rerender(cs) })
package hooks
