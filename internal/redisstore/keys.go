package redisstore

import "fmt"

// CollectionKey returns the list key holding a collection's rows.
func CollectionKey(namespace, collection string) string {
	return fmt.Sprintf("citycycle:%s:collection:%s", namespace, collection)
}

// CollectionsKey returns the set key listing all collection names.
func CollectionsKey(namespace string) string {
	return fmt.Sprintf("citycycle:%s:collections", namespace)
}
