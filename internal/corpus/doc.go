// Package corpus describes the on-disk layout of the sample archive and of the
// trees vxextract writes.
//
// The archive root is read-only and follows Families/<family>/<sample>.7z,
// where <sample> may contain subdirectories. Layout turns a (family, sample)
// pair into archive, extracted, packed, and project paths, and reconstructs the
// public download URL for the provenance header. Listing helpers walk the
// archive tree and return families and samples in sorted order.
package corpus
