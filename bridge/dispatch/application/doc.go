// Package application contém o caso de uso do dispatcher: o pool de slots de
// capacidade fixa, o cancelamento e a entrega dos resultados na main queue.
//
// Ele depende apenas do pacote domain e não conhece net/http nem as filas concretas.
// Ex.: Dispatcher.Send(req) retorna o índice do slot ou -1 se o pool estiver cheio.
package application
