package constants

const (
	// DEFAULT_BLOCK_SIZE is the logical block size in bytes
	DEFAULT_BLOCK_SIZE = 512
	// MAX_TRANSFER is the largest single physical transfer issued to a chunk
	MAX_TRANSFER = 64 * 1024
	// MAX_REQUEST is the largest request a volume accepts by default
	MAX_REQUEST = 1024 * 1024
	// DEFAULT_MAX_REQUESTS is the default number of concurrently outstanding requests per volume
	DEFAULT_MAX_REQUESTS = 64
	// DEFAULT_STRIP_BLOCKS is the default strip size for striped volumes (64KiB at 512 byte blocks)
	DEFAULT_STRIP_BLOCKS = 128
	// DEFAULT_DEVICE_WORKERS is the number of I/O workers per file backed chunk
	DEFAULT_DEVICE_WORKERS = 4
)
