package cdncache

import (
	"fmt"
	"path/filepath"
)

// ObjectURL builds the wire URL of a CDN-hosted object: a manifest-config
// or data-category blob addressed by its hex key, sharded two hex chars
// at a time (spec.md §4.8/§6).
func ObjectURL(host, pathPrefix, category, key, suffix string) string {
	k0k1, k2k3 := keyShards(key)
	u := fmt.Sprintf("http://%s/%s/%s/%s/%s/%s", host, pathPrefix, category, k0k1, k2k3, key)
	if suffix != "" {
		u += suffix
	}
	return u
}

// ManifestURL builds the wire URL of a patch-server manifest (versions or
// cdns).
func ManifestURL(patchServer, product, manifestName string) string {
	return fmt.Sprintf("%s/%s/%s", patchServer, product, manifestName)
}

func keyShards(key string) (k0k1, k2k3 string) {
	if len(key) < 4 {
		return key, key
	}
	return key[0:2], key[2:4]
}

// ObjectPath builds the local on-disk path mirroring a CDN object's
// categorical layout: {cache_root}/{category}/{key}.
func ObjectPath(root, category, key string) string {
	return filepath.Join(root, category, key)
}

// ManifestPath builds the local on-disk path for a patch-server manifest:
// {cache_root}/patch_server/{product}/{name}.
func ManifestPath(root, product, name string) string {
	return filepath.Join(root, "patch_server", product, name)
}
